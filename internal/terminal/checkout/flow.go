package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pos-register/internal/terminal/cart"
	"pos-register/internal/terminal/receipt"
)

// State enumerates the checkout machine's positions
type State int

const (
	StateIdle State = iota
	StateAwaitingMethodSelection
	StateSubmitting
	StateAwaitingConfirmation
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMethodSelection:
		return "awaiting method selection"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingConfirmation:
		return "awaiting confirmation"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrEmptyCart rejects a checkout started with nothing to sell
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientTendered rejects cash below the total
	ErrInsufficientTendered = errors.New("tendered amount is less than the total")
)

// StateError reports an operation attempted from the wrong state
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// Flow drives one sale through method selection, submission, and
// completion. The cart is snapshotted when the flow begins; later cart
// mutations never touch the in-flight transaction.
type Flow struct {
	mu       sync.Mutex
	state    State
	cart     *cart.Store
	client   *Client
	snapshot []cart.Item
	total    float64
}

func NewFlow(cartStore *cart.Store, client *Client) *Flow {
	return &Flow{state: StateIdle, cart: cartStore, client: client}
}

// State returns the machine's current position
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns the frozen lines and total for the in-flight sale
func (f *Flow) Snapshot() ([]cart.Item, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]cart.Item, len(f.snapshot))
	copy(items, f.snapshot)
	return items, f.total
}

// Begin freezes the current cart and moves to method selection
func (f *Flow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle && f.state != StateCompleted {
		return &StateError{Op: "begin checkout", State: f.state}
	}

	items := f.cart.Items()
	if len(items) == 0 {
		return ErrEmptyCart
	}
	f.snapshot = items
	f.total = f.cart.Total()
	f.state = StateAwaitingMethodSelection
	return nil
}

// PayCash settles the sale synchronously. Accepted iff tendered covers
// the frozen total; change is exactly tendered minus total.
func (f *Flow) PayCash(tendered float64) (*receipt.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingMethodSelection {
		return nil, &StateError{Op: "pay cash", State: f.state}
	}
	if tendered < f.total {
		return nil, ErrInsufficientTendered
	}

	f.state = StateCompleted
	return receipt.Build(f.snapshot, f.total, receipt.PaymentDetails{
		Method:   receipt.MethodCash,
		Tendered: tendered,
		Change:   tendered - f.total,
	}), nil
}

// PayCard submits the frozen lines to the orders API. On acceptance the
// flow waits for an out-of-band confirmation; any rejection returns to
// method selection with the cart untouched.
func (f *Flow) PayCard(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateAwaitingMethodSelection {
		f.mu.Unlock()
		return &StateError{Op: "pay card", State: f.state}
	}
	f.state = StateSubmitting
	items := f.snapshot
	total := f.total
	f.mu.Unlock()

	err := f.client.CreateOrder(ctx, items, total)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateAwaitingMethodSelection
		return err
	}
	f.state = StateAwaitingConfirmation
	return nil
}

// Confirm completes a card sale. Only the confirmation listener calls
// this, after the per-user transaction event arrives.
func (f *Flow) Confirm() (*receipt.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingConfirmation {
		return nil, &StateError{Op: "confirm", State: f.state}
	}

	f.state = StateCompleted
	return receipt.Build(f.snapshot, f.total, receipt.PaymentDetails{
		Method: receipt.MethodCard,
	}), nil
}

// CancelWait abandons the confirmation wait and returns to method
// selection. No cancellation is sent to the payment backend.
func (f *Flow) CancelWait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingConfirmation {
		return &StateError{Op: "cancel wait", State: f.state}
	}
	f.state = StateAwaitingMethodSelection
	return nil
}

// Cancel abandons the sale entirely and returns to idle. The live cart
// is left as it was.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateAwaitingMethodSelection, StateAwaitingConfirmation:
		f.state = StateIdle
		f.snapshot = nil
		f.total = 0
		return nil
	default:
		return &StateError{Op: "cancel", State: f.state}
	}
}
