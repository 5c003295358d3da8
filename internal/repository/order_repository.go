package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos-register/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrPendingOrderExists signals the partial unique index on
	// orders(user_id) WHERE status = 'pending'.
	ErrPendingOrderExists = errors.New("a pending order already exists for this user")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order and its line items in one transaction
func (r *orderRepository) Create(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, payment_method, total_amount, gateway_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, order.Status, order.PaymentMethod,
		order.TotalAmount, order.GatewayRef, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "idx_orders_one_pending_per_user") {
			return ErrPendingOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, sku, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.Name, item.SKU, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *orderRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, "user_id = $1 AND status = 'pending'", userID)
}

func (r *orderRepository) findOne(ctx context.Context, where string, arg interface{}) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, status, payment_method, total_amount, gateway_ref, created_at, updated_at
		FROM orders
		WHERE %s
	`, where)

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID, &order.UserID, &order.Status, &order.PaymentMethod,
		&order.TotalAmount, &order.GatewayRef, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) Items(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, name, sku, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.Name, &item.SKU, &item.Price, &item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// SetGatewayRef backfills the payment intent reference once the gateway
// has accepted the order
func (r *orderRepository) SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET gateway_ref = $2, updated_at = now() WHERE id = $1
	`, id, ref)
	if err != nil {
		return fmt.Errorf("failed to set gateway ref: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}

	return nil
}
