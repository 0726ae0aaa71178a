package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/domain"
)

func (s *Server) registerNotificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List notifications",
		Description: "Lists the caller's notifications, newest first. Live delivery is at /api/v1/notifications/stream.",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID: "markNotificationRead",
		Method:      http.MethodPost,
		Path:        "/api/v1/notifications/{id}/read",
		Summary:     "Mark notification read",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMarkNotificationRead)
}

// ListNotificationsInput filters the notification listing.
type ListNotificationsInput struct {
	Authorization string `header:"Authorization"`
	Unread        bool   `query:"unread" doc:"Only return unread notifications"`
}

// ListNotificationsResponse contains a notification listing.
type ListNotificationsResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
}

// ListNotificationsOutput wraps the notification listing for Huma.
type ListNotificationsOutput struct {
	Body ListNotificationsResponse
}

// NotificationInput identifies a notification by path.
type NotificationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Notification ID"`
}

func (s *Server) handleListNotifications(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Notifications.ListNotifications(ctx, userID, input.Unread)
	if err != nil {
		return nil, err
	}
	return &ListNotificationsOutput{Body: ListNotificationsResponse{Notifications: list}}, nil
}

// MessageResponse contains a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func (s *Server) handleMarkNotificationRead(ctx context.Context, input *NotificationInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Notifications.MarkRead(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Notification marked read"}}, nil
}
