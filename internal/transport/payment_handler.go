package transport

import (
	"errors"
	"net/http"

	"pos-register/internal/middleware"
	"pos-register/internal/repository"
	"pos-register/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemRequest is one cart line in an order submission
type OrderItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Name      string  `json:"name" validate:"required"`
	SKU       string  `json:"sku"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the payload for POST /api/mercadopago/orders
type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=card"`
	TotalAmount   float64            `json:"total_amount" validate:"required,gt=0"`
}

// CreateOrderResponse acknowledges an accepted order
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentHandler handles order submission and gateway webhooks
type PaymentHandler struct {
	payments service.PaymentService
	gateway  service.Gateway
	logger   *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments service.PaymentService, gateway service.Gateway, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, gateway: gateway, logger: logger}
}

// RegisterRoutes registers payment routes. The webhook stays outside the
// auth middleware; it is authenticated by its gateway signature instead.
func (h *PaymentHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/api/mercadopago/webhook", h.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/mercadopago/orders", h.CreateOrder)
		r.Delete("/api/mercadopago/orders/pending", h.CancelPending)
	})
}

// CreateOrder accepts a card payment request from a terminal
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if verrs := middleware.FormatValidationErrors(err); len(verrs) > 0 {
			middleware.RespondWithValidationErrors(w, verrs)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
			return
		}
		lines = append(lines, service.OrderLine{
			ProductID: productID,
			Name:      item.Name,
			SKU:       item.SKU,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.payments.CreateOrder(r.Context(), userID, lines, req.TotalAmount)
	if err != nil {
		if errors.Is(err, repository.ErrPendingOrderExists) {
			middleware.RespondWithError(w, http.StatusConflict, "a payment is already pending for this terminal")
			return
		}
		h.logger.Error("Failed to create order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID: order.ID.String(),
		Status:  order.Status,
	})
}

// CancelPending cancels the caller's pending order, if any
func (h *PaymentHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.payments.CancelPending(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "no pending order")
			return
		}
		h.logger.Error("Failed to cancel pending order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Webhook receives payment confirmations from the gateway
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	event, err := h.gateway.ParseWebhook(r)
	if err != nil {
		h.logger.Warn("Webhook verification failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid webhook")
		return
	}

	if err := h.payments.ProcessGatewayEvent(r.Context(), event); err != nil {
		h.logger.Error("Failed to process gateway event",
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
