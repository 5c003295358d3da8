package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-register/internal/terminal/cart"
	"pos-register/internal/terminal/catalog"
	"pos-register/internal/terminal/receipt"

	"github.com/google/uuid"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

func widgetCart() *cart.Store {
	store := cart.NewStore()
	widget := catalog.Product{ID: uuid.New(), Name: "Widget", SKU: "W-1", Price: 9.99}
	store.Add(widget)
	store.Add(widget)
	return store
}

func orderServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mercadopago/orders" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Items         []json.RawMessage `json:"items"`
			PaymentMethod string            `json:"payment_method"`
			TotalAmount   float64           `json:"total_amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Malformed order body: %v", err)
		}
		if body.PaymentMethod != "card" {
			t.Errorf("Expected payment_method card, got %q", body.PaymentMethod)
		}
		w.WriteHeader(status)
		if status == http.StatusCreated {
			json.NewEncoder(w).Encode(map[string]string{"order_id": uuid.NewString(), "status": "pending"})
		}
	}))
}

func TestCashSaleWidgetScenario(t *testing.T) {
	store := widgetCart()
	flow := NewFlow(store, nil)

	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	_, total := flow.Snapshot()
	if math.Abs(total-19.98) > 1e-9 {
		t.Fatalf("Expected total 19.98, got %f", total)
	}

	rcpt, err := flow.PayCash(25.00)
	if err != nil {
		t.Fatalf("PayCash failed: %v", err)
	}
	if math.Abs(rcpt.Change-5.02) > 1e-9 {
		t.Errorf("Expected change 5.02, got %f", rcpt.Change)
	}
	if rcpt.PaymentMethod != receipt.MethodCash {
		t.Errorf("Expected cash receipt, got %q", rcpt.PaymentMethod)
	}
	if rcpt.CashTendered != 25.00 {
		t.Errorf("Expected tendered 25.00, got %f", rcpt.CashTendered)
	}
	if flow.State() != StateCompleted {
		t.Errorf("Expected completed state, got %s", flow.State())
	}
}

func TestCashRejectedBelowTotal(t *testing.T) {
	flow := NewFlow(widgetCart(), nil)
	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if _, err := flow.PayCash(10.00); !errors.Is(err, ErrInsufficientTendered) {
		t.Fatalf("Expected ErrInsufficientTendered, got %v", err)
	}
	if flow.State() != StateAwaitingMethodSelection {
		t.Errorf("Short cash should stay at method selection, got %s", flow.State())
	}

	// Exact payment is accepted with zero change
	rcpt, err := flow.PayCash(19.98)
	if err != nil {
		t.Fatalf("Exact tender rejected: %v", err)
	}
	if rcpt.Change != 0 {
		t.Errorf("Expected zero change, got %f", rcpt.Change)
	}
}

func TestCardConflictReturnsToMethodSelection(t *testing.T) {
	server := orderServer(t, http.StatusConflict)
	defer server.Close()

	store := widgetCart()
	itemsBefore := store.Items()
	client := NewClient(server.URL, server.Client(), staticTokens("tok"))
	flow := NewFlow(store, client)

	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	err := flow.PayCard(context.Background())
	if !errors.Is(err, ErrOrderPending) {
		t.Fatalf("Expected ErrOrderPending, got %v", err)
	}
	if flow.State() != StateAwaitingMethodSelection {
		t.Errorf("Conflict should return to method selection, got %s", flow.State())
	}

	itemsAfter := store.Items()
	if len(itemsAfter) != len(itemsBefore) || itemsAfter[0] != itemsBefore[0] {
		t.Errorf("Conflict must leave the cart unmodified")
	}
}

func TestCardAcceptedWaitsForConfirmation(t *testing.T) {
	server := orderServer(t, http.StatusCreated)
	defer server.Close()

	flow := NewFlow(widgetCart(), NewClient(server.URL, server.Client(), staticTokens("tok")))
	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := flow.PayCard(context.Background()); err != nil {
		t.Fatalf("PayCard failed: %v", err)
	}
	if flow.State() != StateAwaitingConfirmation {
		t.Errorf("Accepted card payment should await confirmation, got %s", flow.State())
	}

	// Completion comes only from the confirmation event
	rcpt, err := flow.Confirm()
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if rcpt.PaymentMethod != receipt.MethodCard {
		t.Errorf("Expected card receipt, got %q", rcpt.PaymentMethod)
	}
}

func TestCardConnectivityError(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // refused connections from here on

	flow := NewFlow(widgetCart(), NewClient(server.URL, nil, staticTokens("tok")))
	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	err := flow.PayCard(context.Background())
	var conn *ConnectivityError
	if !errors.As(err, &conn) {
		t.Fatalf("Expected ConnectivityError, got %v", err)
	}
	if flow.State() != StateAwaitingMethodSelection {
		t.Errorf("Network failure should return to method selection, got %s", flow.State())
	}
}

func TestSnapshotIgnoresLaterCartMutations(t *testing.T) {
	store := widgetCart()
	flow := NewFlow(store, nil)
	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	// Mutate the live cart mid-checkout
	extra := catalog.Product{ID: uuid.New(), Name: "Gadget", SKU: "G-1", Price: 100}
	store.Add(extra)
	store.SetQuantity(store.Items()[0].ProductID, 7)

	items, total := flow.Snapshot()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("Snapshot leaked live cart mutations: %+v", items)
	}
	if math.Abs(total-19.98) > 1e-9 {
		t.Errorf("Frozen total changed to %f", total)
	}

	rcpt, err := flow.PayCash(20)
	if err != nil {
		t.Fatalf("PayCash failed: %v", err)
	}
	if len(rcpt.Lines) != 1 || rcpt.Lines[0].Quantity != 2 {
		t.Errorf("Receipt should reflect the frozen snapshot, got %+v", rcpt.Lines)
	}
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	flow := NewFlow(cart.NewStore(), nil)
	if err := flow.Begin(); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("Expected ErrEmptyCart, got %v", err)
	}
}

func TestCancelTransitions(t *testing.T) {
	flow := NewFlow(widgetCart(), nil)

	// Cancel from idle is invalid
	var stateErr *StateError
	if err := flow.Cancel(); !errors.As(err, &stateErr) {
		t.Fatalf("Expected StateError, got %v", err)
	}

	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.Cancel(); err != nil {
		t.Fatalf("Cancel from method selection failed: %v", err)
	}
	if flow.State() != StateIdle {
		t.Errorf("Cancel should return to idle, got %s", flow.State())
	}

	// A cancelled flow can start over
	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin after cancel failed: %v", err)
	}
}

func TestConfirmOnlyFromWaitingState(t *testing.T) {
	flow := NewFlow(widgetCart(), nil)

	var stateErr *StateError
	if _, err := flow.Confirm(); !errors.As(err, &stateErr) {
		t.Fatalf("Expected StateError, got %v", err)
	}

	if err := flow.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := flow.Confirm(); !errors.As(err, &stateErr) {
		t.Fatalf("Confirm from method selection should fail, got %v", err)
	}
}
