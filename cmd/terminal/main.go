package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"pos-register/internal/config"
	"pos-register/internal/logger"
	"pos-register/internal/terminal/cart"
	"pos-register/internal/terminal/catalog"
	"pos-register/internal/terminal/checkout"
	"pos-register/internal/terminal/confirm"
	"pos-register/internal/terminal/receipt"
	"pos-register/internal/terminal/session"

	"go.uber.org/zap"
)

// terminal bundles the client-side components behind the cashier prompt
type terminal struct {
	cfg      *config.Config
	logger   *zap.Logger
	session  *session.Session
	catalog  *catalog.Client
	cart     *cart.Store
	flow     *checkout.Flow
	listener *confirm.Listener
	receipts *receipt.Store

	// listing holds the last product search so lines can be added by
	// their displayed number
	listing []catalog.Product
	// lastReceiptID points the print command at the most recent sale
	lastReceiptID string
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	sess := session.New(cfg.Terminal.APIBaseURL, nil, log)

	fileStore := cart.NewFileStore(cfg.Terminal.CartPath, log)
	saved, err := fileStore.Load()
	if err != nil {
		log.Warn("Could not restore saved cart", zap.Error(err))
	}
	cartStore := cart.Restore(saved)
	cartStore.Subscribe(fileStore)

	payClient := checkout.NewClient(cfg.Terminal.APIBaseURL, nil, sess)

	t := &terminal{
		cfg:      cfg,
		logger:   log,
		session:  sess,
		catalog:  catalog.NewClient(cfg.Terminal.APIBaseURL, cfg.Terminal.PageSize, nil, sess, log),
		cart:     cartStore,
		flow:     checkout.NewFlow(cartStore, payClient),
		listener: confirm.NewListener(cfg.Terminal.APIBaseURL, nil, sess, log),
		receipts: receipt.NewStore(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t.run(ctx)

	// Best-effort token revocation on the way out
	sess.Logout(context.Background())
	log.Info("Terminal closed")
}

func (t *terminal) run(ctx context.Context) {
	fmt.Printf("%s register. Type help for commands.\n", t.cfg.Terminal.StoreName)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printHelp()
		case "login":
			t.login(ctx, args)
		case "logout":
			t.session.Logout(ctx)
			fmt.Println("signed out")
		case "products":
			t.products(ctx, strings.Join(args, " "))
		case "add":
			t.add(args)
		case "qty":
			t.setQuantity(args)
		case "rm":
			t.remove(args)
		case "cart":
			t.showCart()
		case "checkout":
			t.checkout()
		case "cash":
			t.payCash(args)
		case "card":
			t.payCard(ctx)
		case "cancel":
			t.cancel()
		case "receipt":
			t.showReceipt(args)
		case "new":
			t.cart.Clear()
			fmt.Println("cart cleared, ready for next sale")
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q, type help\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Print(`login <email> <password>   sign in
products [search]          list catalog, optionally filtered
add <n>                    add listed product n to the cart
qty <n> <count>            set quantity of cart line n
rm <n>                     remove cart line n
cart                       show the cart
checkout                   start a sale from the current cart
cash <tendered>            settle with cash
card                       settle with card, waits for confirmation
cancel                     abandon the in-flight sale
receipt [id]               reprint a receipt
new                        clear the cart for the next sale
quit                       exit
`)
}

func (t *terminal) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	user, err := t.session.Login(ctx, args[0], args[1])
	if err != nil {
		var locked *session.ErrAccountLocked
		if errors.As(err, &locked) {
			fmt.Printf("account locked, try again in %s\n", locked.RetryAfter)
			return
		}
		fmt.Println(err)
		return
	}
	fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)
}

func (t *terminal) products(ctx context.Context, search string) {
	products, err := t.catalog.Products(ctx, search)
	if err != nil {
		fmt.Println("could not load products:", err)
		return
	}
	t.listing = products
	for i, p := range products {
		fmt.Printf("%3d  %-24s %8.2f  %s\n", i+1, p.Name, p.Price, p.Category)
	}
	if len(products) == 0 {
		fmt.Println("no products found")
	}
}

func (t *terminal) add(args []string) {
	n, ok := t.listingIndex(args)
	if !ok {
		return
	}
	t.cart.Add(t.listing[n])
	t.showCart()
}

func (t *terminal) setQuantity(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: qty <line> <count>")
		return
	}
	line, err1 := strconv.Atoi(args[0])
	count, err2 := strconv.Atoi(args[1])
	items := t.cart.Items()
	if err1 != nil || err2 != nil || line < 1 || line > len(items) {
		fmt.Println("usage: qty <line> <count>")
		return
	}
	t.cart.SetQuantity(items[line-1].ProductID, count)
	t.showCart()
}

func (t *terminal) remove(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: rm <line>")
		return
	}
	line, err := strconv.Atoi(args[0])
	items := t.cart.Items()
	if err != nil || line < 1 || line > len(items) {
		fmt.Println("usage: rm <line>")
		return
	}
	t.cart.Remove(items[line-1].ProductID)
	t.showCart()
}

func (t *terminal) showCart() {
	items := t.cart.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for i, item := range items {
		fmt.Printf("%3d  %-24s x%-3d %8.2f\n", i+1, item.Name, item.Quantity, item.Price*float64(item.Quantity))
	}
	fmt.Printf("     total %8.2f\n", t.cart.Total())
}

func (t *terminal) checkout() {
	if err := t.flow.Begin(); err != nil {
		fmt.Println(err)
		return
	}
	_, total := t.flow.Snapshot()
	fmt.Printf("total %.2f, pay with: cash <tendered> or card\n", total)
}

func (t *terminal) payCash(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cash <tendered>")
		return
	}
	tendered, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Println("usage: cash <tendered>")
		return
	}

	rcpt, err := t.flow.PayCash(tendered)
	if err != nil {
		fmt.Println(err)
		return
	}
	t.finishSale(rcpt)
}

func (t *terminal) payCard(ctx context.Context) {
	if err := t.flow.PayCard(ctx); err != nil {
		var conn *checkout.ConnectivityError
		switch {
		case errors.Is(err, checkout.ErrOrderPending):
			fmt.Println(err)
		case errors.As(err, &conn):
			fmt.Println("connection problem, check the network and retry")
		default:
			fmt.Println("payment failed:", err)
		}
		return
	}

	user := t.session.User()
	if user == nil {
		fmt.Println("session lost, sign in again")
		return
	}

	fmt.Println("waiting for payment confirmation... (ctrl-c to abandon)")
	tx, err := t.listener.Wait(ctx, user.ID)
	if err != nil {
		t.logger.Warn("Confirmation wait ended without an event", zap.Error(err))
		fmt.Println("no confirmation received:", err)
		if cancelErr := t.flow.CancelWait(); cancelErr != nil {
			t.logger.Warn("Could not reset checkout", zap.Error(cancelErr))
		}
		return
	}
	t.logger.Info("Payment confirmed",
		zap.String("order_id", tx.OrderID),
		zap.String("status", tx.Status),
	)

	rcpt, err := t.flow.Confirm()
	if err != nil {
		fmt.Println(err)
		return
	}
	t.finishSale(rcpt)
}

func (t *terminal) cancel() {
	if err := t.flow.Cancel(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("sale cancelled")
}

// finishSale stores and prints the receipt. The cart is deliberately
// left as sold; only the new command clears it.
func (t *terminal) finishSale(rcpt *receipt.Receipt) {
	t.receipts.Put(rcpt)
	t.lastReceiptID = rcpt.ID
	if err := receipt.Render(os.Stdout, t.cfg.Terminal.StoreName, rcpt); err != nil {
		t.logger.Error("Failed to print receipt", zap.Error(err))
	}
}

func (t *terminal) showReceipt(args []string) {
	id := t.lastReceiptID
	if len(args) == 1 {
		id = args[0]
	}
	stored := t.receipts.Lookup(id)
	if err := receipt.Render(os.Stdout, t.cfg.Terminal.StoreName, &stored); err != nil {
		t.logger.Error("Failed to print receipt", zap.Error(err))
	}
}

func (t *terminal) listingIndex(args []string) (int, bool) {
	if len(args) != 1 {
		fmt.Println("usage: add <n> (run products first)")
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(t.listing) {
		fmt.Println("usage: add <n> (run products first)")
		return 0, false
	}
	return n - 1, true
}
