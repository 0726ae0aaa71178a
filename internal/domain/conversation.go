package domain

import "time"

// MessageKind distinguishes lifecycle messages from messages typed by a participant.
type MessageKind string

const (
	MessageSystem MessageKind = "system"
	MessageUser   MessageKind = "user"
)

// Conversation is the side-channel thread attached to an invitation.
// It is never authoritative for invitation or property state.
type Conversation struct {
	Record
	PropertyID string `json:"propertyId"`
	LandlordID string `json:"landlordId"`
	TenantID   string `json:"tenantId"`
	// RelatedInvitationID is a weak back-reference used only for lookup.
	RelatedInvitationID string     `json:"relatedInvitationId,omitempty"`
	LastMessage         string     `json:"lastMessage,omitempty"`
	LastMessageTime     *time.Time `json:"lastMessageTime,omitempty"`
}

// HasParticipant reports whether userID is the landlord or tenant of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.LandlordID == userID || c.TenantID == userID
}

// Message is a single entry in a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"kind"`
	CreatedAt      time.Time   `json:"createdAt"`
}
