package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

const notificationColumns = `id, user_id, title, body, type, data, read_at, created_at`

func scanNotification(sc scanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		typ       string
		data      sql.NullString
		readAt    sql.NullString
		createdAt string
	)
	err := sc.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &typ, &data, &readAt, &createdAt)
	if err != nil {
		return nil, err
	}

	n.Type = domain.NotificationType(typ)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	if n.ReadAt, err = parseNullableTime(readAt); err != nil {
		return nil, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification persists a notification.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	var data sql.NullString
	if len(n.Data) > 0 {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, string(n.Type), data, nullTimeString(n.ReadAt), formatTime(n.CreatedAt))
	return classify(err)
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanNotification)
}

// MarkNotificationRead marks a notification read. Marking twice is a no-op.
// Returns store.ErrNotFound if the notification does not belong to userID.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`, formatTime(at), id, userID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
