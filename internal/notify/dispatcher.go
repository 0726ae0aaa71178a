// Package notify delivers user notifications: persisted first, then pushed
// to any live connection the user has open.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/id"
	"github.com/rentwise/rentwise-server/internal/sse"
	"github.com/rentwise/rentwise-server/internal/store"
)

// Pusher delivers events to connected clients without blocking.
type Pusher interface {
	Emit(event sse.Event) bool
}

// Dispatcher persists notifications and pushes them over SSE.
type Dispatcher struct {
	store  store.NotificationStore
	pusher Pusher
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. pusher may be nil, in which case
// notifications are only persisted.
func NewDispatcher(store store.NotificationStore, pusher Pusher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, pusher: pusher, logger: logger}
}

// Notify stores n for its user and pushes it to their open connections.
// Only the store write can fail; a dropped push is logged and the user
// sees the notification on their next list.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification has no recipient")
	}
	if n.ID == "" {
		notificationID, err := id.Generate(id.PrefixNotification)
		if err != nil {
			return fmt.Errorf("generate notification ID: %w", err)
		}
		n.ID = notificationID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if err := d.store.CreateNotification(ctx, &n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if d.pusher != nil && !d.pusher.Emit(sse.NewNotificationEvent(&n)) {
		d.logger.Debug("live notification push dropped",
			"notification_id", n.ID,
			"user_id", n.UserID,
		)
	}
	return nil
}
