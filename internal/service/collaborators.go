package service

import (
	"context"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
)

// Notifier delivers user-facing alerts. Callers treat a returned error as a
// degraded side effect, never as a failure of their own operation.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// ConversationSeed describes the conversation created alongside an invitation.
type ConversationSeed struct {
	PropertyID   string
	LandlordID   string
	TenantID     string
	InvitationID string
	// SenderID authors the seed message.
	SenderID string
	Content  string
}

// Conversations is the side-channel collaborator used by the invitation lifecycle.
type Conversations interface {
	CreateConversation(ctx context.Context, seed ConversationSeed) (string, error)
	// FindConversationByInvitation returns nil and no error when none exists.
	FindConversationByInvitation(ctx context.Context, invitationID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, senderID, content string) error
	RefreshPreview(ctx context.Context, conversationID, content string, at time.Time) error
}

// UserLookup resolves user ids for validation and notification payloads.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
