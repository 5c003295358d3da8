package transport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"pos-register/internal/middleware"
	"pos-register/internal/realtime"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

// RealtimeHandler bridges redis pub/sub channels to terminals over
// server-sent events.
type RealtimeHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(hub *realtime.Hub, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, logger: logger}
}

// RegisterRoutes registers the SSE endpoint behind the auth middleware
func (h *RealtimeHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/realtime/{channel}", h.Stream)
	})
}

// Stream attaches the caller to a per-user channel. Users may only listen
// to channels suffixed with their own id; admins may listen to any.
func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	role, _ := middleware.GetUserRole(r.Context())

	if !channelAllowed(channel, userID, role) {
		h.logger.Warn("Channel access denied",
			zap.String("channel", channel),
			zap.String("user_id", userID),
		)
		middleware.RespondWithError(w, http.StatusForbidden, "channel not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := h.hub.Subscribe(r.Context(), channel)
	if err != nil {
		h.logger.Error("Subscription failed", zap.String("channel", channel), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "subscription failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Payload)
			flusher.Flush()
		}
	}
}

func channelAllowed(channel, userID, role string) bool {
	if role == middleware.RoleAdmin {
		return true
	}
	kind, owner, ok := strings.Cut(channel, ".")
	if !ok {
		return false
	}
	return (kind == "transaction" || kind == "notification") && owner == userID
}
