package repository

import (
	"context"
	"testing"
	"time"

	"pos-register/internal/domain"

	"github.com/google/uuid"
)

func createOrderOwner(t *testing.T, email string) uuid.UUID {
	t.Helper()
	user := newTestUser(t, email)
	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create order owner: %v", err)
	}
	return user.ID
}

func newPendingOrder(userID uuid.UUID) (*domain.Order, []*domain.OrderItem) {
	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: "card",
		TotalAmount:   19.98,
		GatewayRef:    "pi_test",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	items := []*domain.OrderItem{
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Name:      "Widget",
			SKU:       "W-1",
			Price:     9.99,
			Quantity:  2,
		},
	}
	return order, items
}

func TestOrderCreateAndFetch(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	userID := createOrderOwner(t, "orders1@example.com")

	order, items := newPendingOrder(userID)
	if err := repo.Create(ctx, order, items); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.Status != domain.OrderStatusPending || found.TotalAmount != 19.98 {
		t.Errorf("Order fields wrong: %+v", found)
	}

	lines, err := repo.Items(ctx, order.ID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 2 || lines[0].Name != "Widget" {
		t.Errorf("Order items wrong: %+v", lines)
	}

	pending, err := repo.FindPendingByUser(ctx, userID)
	if err != nil {
		t.Fatalf("FindPendingByUser failed: %v", err)
	}
	if pending.ID != order.ID {
		t.Errorf("Pending lookup returned wrong order: %+v", pending)
	}
}

func TestOrderSecondPendingRejected(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	userID := createOrderOwner(t, "orders2@example.com")

	first, items := newPendingOrder(userID)
	if err := repo.Create(ctx, first, items); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	second, moreItems := newPendingOrder(userID)
	if err := repo.Create(ctx, second, moreItems); err != ErrPendingOrderExists {
		t.Fatalf("Expected ErrPendingOrderExists, got %v", err)
	}

	// The rejected insert must not leave orphaned items behind
	lines, err := repo.Items(ctx, second.ID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("Rejected order left %d items", len(lines))
	}

	// Settling the first order frees the slot
	if err := repo.UpdateStatus(ctx, first.ID, domain.OrderStatusPaid); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	third, thirdItems := newPendingOrder(userID)
	if err := repo.Create(ctx, third, thirdItems); err != nil {
		t.Errorf("Create after settlement failed: %v", err)
	}
}

func TestOrderSetGatewayRef(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	userID := createOrderOwner(t, "orders4@example.com")

	order, items := newPendingOrder(userID)
	order.GatewayRef = ""
	if err := repo.Create(ctx, order, items); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.SetGatewayRef(ctx, order.ID, "pi_backfilled"); err != nil {
		t.Fatalf("SetGatewayRef failed: %v", err)
	}
	found, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.GatewayRef != "pi_backfilled" {
		t.Errorf("Expected backfilled gateway ref, got %q", found.GatewayRef)
	}

	if err := repo.SetGatewayRef(ctx, uuid.New(), "pi_orphan"); err != ErrOrderNotFound {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderUpdateStatus(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	userID := createOrderOwner(t, "orders3@example.com")

	order, items := newPendingOrder(userID)
	if err := repo.Create(ctx, order, items); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusFailed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	found, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.Status != domain.OrderStatusFailed {
		t.Errorf("Expected failed status, got %q", found.Status)
	}

	if err := repo.UpdateStatus(ctx, uuid.New(), domain.OrderStatusPaid); err != ErrOrderNotFound {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}

	if _, err := repo.FindPendingByUser(ctx, userID); err != ErrOrderNotFound {
		t.Fatalf("Expected no pending order, got %v", err)
	}
}
