package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

// NotificationService lets users read and acknowledge their notifications.
// Delivery is the notify.Dispatcher's job.
type NotificationService struct {
	store   store.NotificationStore
	logger  *slog.Logger
	timeout time.Duration
}

// NewNotificationService creates a new notification service.
func NewNotificationService(store store.NotificationStore, logger *slog.Logger, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return &NotificationService{store: store, logger: logger, timeout: timeout}
}

// ListNotifications returns userID's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	list, err := storageCall(ctx, s.timeout, func(ctx context.Context) ([]*domain.Notification, error) {
		return s.store.ListNotifications(ctx, userID, unreadOnly)
	})
	if err != nil {
		return nil, translateStoreError(err, "notifications not found")
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

// MarkRead acknowledges one of userID's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.MarkNotificationRead(ctx, notificationID, userID, time.Now())
	})
	return translateStoreError(err, "notification not found")
}
