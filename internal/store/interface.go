// Package store defines the persistence interfaces for the rentwise server.
package store

import (
	"context"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
)

// PropertyStore persists properties and their tenant sets.
// Tenant-set mutations are atomic set operations; none rewrites the whole record.
type PropertyStore interface {
	CreateProperty(ctx context.Context, p *domain.Property) error
	GetProperty(ctx context.Context, id string) (*domain.Property, error)
	ListProperties(ctx context.Context) ([]*domain.Property, error)
	ListPropertiesByLandlord(ctx context.Context, landlordID string) ([]*domain.Property, error)
	ListPropertiesByTenant(ctx context.Context, tenantID string) ([]*domain.Property, error)

	// AddTenant adds tenantID to the set and marks the property rented.
	// Adding a present tenant is a no-op; added reports whether the set changed.
	AddTenant(ctx context.Context, propertyID, tenantID string, source domain.AssignmentSource) (added bool, err error)
	// RemoveTenant removes tenantID from the set, marks the property available
	// when the set becomes empty, and deletes every invitation for the pair.
	RemoveTenant(ctx context.Context, propertyID, tenantID string) (*TenantRemoval, error)
	// SetPropertyStatus changes status on a property with no tenants.
	// Returns ErrPropertyOccupied if tenants are assigned.
	SetPropertyStatus(ctx context.Context, id string, status domain.PropertyStatus) error
	// SyncPropertyStatus recomputes status from the tenant set in one statement.
	SyncPropertyStatus(ctx context.Context, id string) (status domain.PropertyStatus, changed bool, err error)
	// ListOrphanAssignments returns invitation-sourced assignments with no accepted invitation.
	ListOrphanAssignments(ctx context.Context) ([]domain.OrphanAssignment, error)

	UpsertProperty(ctx context.Context, p *domain.Property) error
}

// TenantRemoval describes the effect of RemoveTenant.
type TenantRemoval struct {
	Removed            bool
	InvitationsDeleted int
	Status             domain.PropertyStatus
}

// InvitationStore persists invitations and their guarded transitions.
type InvitationStore interface {
	// CreateInvitation inserts a pending invitation. Returns ErrAlreadyExists
	// when the pair already has a pending or accepted invitation.
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, id string) (*domain.Invitation, error)

	// AcceptInvitation moves a pending invitation addressed to tenantID to accepted
	// and writes an assignment outbox entry in the same transaction.
	// Returns ErrNotPending when no row matched.
	AcceptInvitation(ctx context.Context, id, tenantID string, at time.Time) (*domain.Invitation, *domain.AssignmentEntry, error)
	// DeclineInvitation moves a pending invitation addressed to tenantID to declined.
	// Returns ErrNotPending when no row matched.
	DeclineInvitation(ctx context.Context, id, tenantID string, at time.Time) (*domain.Invitation, error)

	DeleteInvitationsForPair(ctx context.Context, propertyID, tenantID string) (int, error)
	ListInvitationsByProperty(ctx context.Context, propertyID string) ([]*domain.Invitation, error)
	ListInvitationsByTenant(ctx context.Context, tenantID string) ([]*domain.Invitation, error)
	ListInvitationsByLandlord(ctx context.Context, landlordID string) ([]*domain.Invitation, error)
	ListAcceptedInvitations(ctx context.Context) ([]*domain.Invitation, error)

	UpsertInvitation(ctx context.Context, inv *domain.Invitation) error
}

// OutboxStore persists pending property assignments written by acceptance.
type OutboxStore interface {
	// ApplyAssignment performs the entry's set-add and marks it processed in one
	// transaction. A processed entry, or one whose invitation is no longer
	// accepted, is marked processed without touching the property.
	ApplyAssignment(ctx context.Context, entryID string, at time.Time) (applied bool, err error)
	// ReapplyAssignment re-adds the tenant of an accepted invitation, checking
	// the invitation's state in the same transaction. Returns false when the
	// invitation is no longer accepted or the tenant is already assigned.
	ReapplyAssignment(ctx context.Context, invitationID string, at time.Time) (applied bool, err error)
	ListPendingAssignments(ctx context.Context, limit int) ([]*domain.AssignmentEntry, error)
	RecordAssignmentFailure(ctx context.Context, entryID, msg string) error
}

// ConversationStore persists side-channel conversations and messages.
type ConversationStore interface {
	// CreateConversation inserts the conversation and its seed message together.
	CreateConversation(ctx context.Context, conv *domain.Conversation, seed *domain.Message) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	FindConversationByInvitation(ctx context.Context, invitationID string) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	AppendMessage(ctx context.Context, msg *domain.Message) error
	RefreshPreview(ctx context.Context, conversationID, content string, at time.Time) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error
}

// UserStore persists the user directory.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// Store defines the interface for all persistence operations.
type Store interface {
	PropertyStore
	InvitationStore
	OutboxStore
	ConversationStore
	NotificationStore
	UserStore

	Ping(ctx context.Context) error
	Close() error
}
