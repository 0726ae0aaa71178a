package domain

import "time"

// NotificationType identifies what happened.
type NotificationType string

const (
	NotificationInvitationReceived NotificationType = "invitation_received"
	NotificationInvitationAccepted NotificationType = "invitation_accepted"
	NotificationInvitationDeclined NotificationType = "invitation_declined"
	NotificationTenantRemoved      NotificationType = "tenant_removed"
	NotificationTenantAssigned     NotificationType = "tenant_assigned"
)

// Notification is a user-facing alert.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      NotificationType  `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// IsRead reports whether the user has acknowledged the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
