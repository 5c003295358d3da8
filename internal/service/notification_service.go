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

// NotificationService defines the interface for unread-message handling
type NotificationService interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewNotificationService creates a new instance of NotificationService
func NewNotificationService(repo repository.NotificationRepository, hub *realtime.Hub, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, hub: hub, logger: logger}
}

// Notify stores a notification and pushes the new unread count on the
// user's notification channel.
func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count unread notifications: %w", err)
	}

	payload := map[string]interface{}{"unread": count, "message": message}
	if err := s.hub.Publish(ctx, realtime.NotificationChannel(userID), realtime.EventNotificationReceived, payload); err != nil {
		s.logger.Error("Failed to publish notification event",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
