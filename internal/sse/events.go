// Package sse pushes per-user events to connected clients over Server-Sent Events.
package sse

import (
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventNotification carries a newly persisted notification.
	EventNotification EventType = "notification.created"
	// EventPropertyUpdated tells a user a property they belong to changed.
	EventPropertyUpdated EventType = "property.updated"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's connections. Empty broadcasts.
	UserID string `json:"-"`
}

// NotificationEventData is the payload of a notification event.
type NotificationEventData struct {
	Notification *domain.Notification `json:"notification"`
}

// PropertyEventData is the payload of a property event.
type PropertyEventData struct {
	PropertyID string                `json:"property_id"`
	Status     domain.PropertyStatus `json:"status"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewNotificationEvent wraps a notification for its recipient.
func NewNotificationEvent(n *domain.Notification) Event {
	return Event{
		Type:      EventNotification,
		Data:      NotificationEventData{Notification: n},
		Timestamp: time.Now(),
		UserID:    n.UserID,
	}
}

// NewPropertyEvent reports a property change to one user.
func NewPropertyEvent(userID, propertyID string, status domain.PropertyStatus) Event {
	return Event{
		Type:      EventPropertyUpdated,
		Data:      PropertyEventData{PropertyID: propertyID, Status: status},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
