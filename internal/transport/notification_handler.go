package transport

import (
	"net/http"

	"pos-register/internal/middleware"
	"pos-register/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationHandler serves unread-message counts
type NotificationHandler struct {
	notifications service.NotificationService
	logger        *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// RegisterRoutes registers notification routes behind the auth middleware
func (h *NotificationHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/notifications/unread", h.Unread)
		r.Post("/api/notifications/read", h.MarkAllRead)
	})
}

// Unread returns the caller's unread notification count
func (h *NotificationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid user ID")
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count notifications", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkAllRead clears the caller's unread notifications
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid user ID")
		return
	}

	if err := h.notifications.MarkAllRead(r.Context(), userID); err != nil {
		h.logger.Error("Failed to mark notifications read", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
