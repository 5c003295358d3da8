package service

import (
	"context"
	"fmt"
	"time"

	"pos-register/internal/domain"
	"pos-register/internal/realtime"
	"pos-register/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderLine is one cart line submitted by a terminal
type OrderLine struct {
	ProductID uuid.UUID
	Name      string
	SKU       string
	Price     float64
	Quantity  int
}

// PaymentService defines the interface for card payment business logic
type PaymentService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, lines []OrderLine, totalAmount float64) (*domain.Order, error)
	ProcessGatewayEvent(ctx context.Context, event *GatewayEvent) error
	CancelPending(ctx context.Context, userID uuid.UUID) error
}

type paymentService struct {
	orders        repository.OrderRepository
	notifications NotificationService
	gateway       Gateway
	hub           *realtime.Hub
	currency      string
	logger        *zap.Logger
}

// NewPaymentService creates a new instance of PaymentService
func NewPaymentService(
	orders repository.OrderRepository,
	notifications NotificationService,
	gateway Gateway,
	hub *realtime.Hub,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orders:        orders,
		notifications: notifications,
		gateway:       gateway,
		hub:           hub,
		currency:      "usd",
		logger:        logger,
	}
}

// CreateOrder freezes the submitted cart lines into a pending order and
// registers a payment intent with the gateway. At most one pending order
// may exist per user; repository.ErrPendingOrderExists surfaces unchanged.
func (s *paymentService) CreateOrder(ctx context.Context, userID uuid.UUID, lines []OrderLine, totalAmount float64) (*domain.Order, error) {
	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: "card",
		TotalAmount:   totalAmount,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	items := make([]*domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, &domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			SKU:       line.SKU,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}

	// The order row goes in first so a second terminal submission hits the
	// pending unique index before any intent exists at the gateway.
	if err := s.orders.Create(ctx, order, items); err != nil {
		return nil, err
	}

	ref, err := s.gateway.CreateIntent(ctx, order.ID, userID, totalAmount, s.currency)
	if err != nil {
		if cancelErr := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); cancelErr != nil {
			s.logger.Error("Failed to cancel order after intent failure",
				zap.String("order_id", order.ID.String()),
				zap.Error(cancelErr),
			)
		}
		return nil, fmt.Errorf("failed to register payment intent: %w", err)
	}
	order.GatewayRef = ref

	if err := s.orders.SetGatewayRef(ctx, order.ID, ref); err != nil {
		return nil, fmt.Errorf("failed to record payment intent: %w", err)
	}

	s.logger.Info("Payment order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("total", totalAmount),
	)

	return order, nil
}

// ProcessGatewayEvent finalizes an order from a webhook delivery and pushes
// the transaction onto the user's realtime channel. Redelivery for an order
// already in a terminal status is a no-op.
func (s *paymentService) ProcessGatewayEvent(ctx context.Context, event *GatewayEvent) error {
	order, err := s.orders.FindByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order for gateway event: %w", err)
	}

	if order.Status != domain.OrderStatusPending {
		s.logger.Info("Skipping duplicate gateway event",
			zap.String("order_id", order.ID.String()),
			zap.String("status", order.Status),
		)
		return nil
	}

	status := domain.OrderStatusPaid
	if !event.Succeeded {
		status = domain.OrderStatusFailed
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, status); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	tx := domain.Transaction{
		ID:        uuid.New(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    status,
		Amount:    order.TotalAmount,
		CreatedAt: time.Now(),
	}

	if err := s.hub.Publish(ctx, realtime.TransactionChannel(order.UserID), realtime.EventTransactionReceived, tx); err != nil {
		// The terminal can still discover the outcome by retrying; log and
		// keep the order state authoritative.
		s.logger.Error("Failed to publish transaction event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	msg := fmt.Sprintf("Payment of %.2f %s", order.TotalAmount, status)
	if err := s.notifications.Notify(ctx, order.UserID, msg); err != nil {
		s.logger.Error("Failed to create payment notification",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return nil
}

// CancelPending marks the user's pending order cancelled, if one exists
func (s *paymentService) CancelPending(ctx context.Context, userID uuid.UUID) error {
	order, err := s.orders.FindPendingByUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled)
}
