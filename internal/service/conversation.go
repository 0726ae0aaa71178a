package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/id"
	"github.com/rentwise/rentwise-server/internal/store"
)

// defaultMessagePage caps ListMessages when the caller gives no limit.
const defaultMessagePage = 200

// ConversationService manages the side-channel conversations attached to
// invitations. It implements Conversations for InvitationService and serves
// participants reading and posting messages.
type ConversationService struct {
	store   store.ConversationStore
	logger  *slog.Logger
	timeout time.Duration
}

var _ Conversations = (*ConversationService)(nil)

// NewConversationService creates a new conversation service.
func NewConversationService(store store.ConversationStore, logger *slog.Logger, timeout time.Duration) *ConversationService {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return &ConversationService{store: store, logger: logger, timeout: timeout}
}

// PostMessageRequest contains a participant's message.
type PostMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// CreateConversation creates a conversation with a system seed message and returns its id.
func (s *ConversationService) CreateConversation(ctx context.Context, seed ConversationSeed) (string, error) {
	conversationID, err := id.Generate(id.PrefixConversation)
	if err != nil {
		return "", fmt.Errorf("generate conversation ID: %w", err)
	}
	messageID, err := id.Generate(id.PrefixMessage)
	if err != nil {
		return "", fmt.Errorf("generate message ID: %w", err)
	}

	now := time.Now()
	conv := &domain.Conversation{
		PropertyID:          seed.PropertyID,
		LandlordID:          seed.LandlordID,
		TenantID:            seed.TenantID,
		RelatedInvitationID: seed.InvitationID,
	}
	conv.ID = conversationID
	conv.InitTimestamps(now)

	msg := &domain.Message{
		ID:        messageID,
		SenderID:  seed.SenderID,
		Content:   normalizeText(seed.Content),
		Kind:      domain.MessageSystem,
		CreatedAt: now,
	}

	if err := storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.CreateConversation(ctx, conv, msg)
	}); err != nil {
		return "", translateStoreError(err, "conversation not found")
	}
	return conv.ID, nil
}

// FindConversationByInvitation returns the invitation's conversation, or nil if there is none.
func (s *ConversationService) FindConversationByInvitation(ctx context.Context, invitationID string) (*domain.Conversation, error) {
	conv, err := storageCall(ctx, s.timeout, func(ctx context.Context) (*domain.Conversation, error) {
		return s.store.FindConversationByInvitation(ctx, invitationID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateStoreError(err, "conversation not found")
	}
	return conv, nil
}

// AppendMessage appends a lifecycle message authored by senderID.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, senderID, content string) error {
	_, err := s.append(ctx, conversationID, senderID, content, domain.MessageSystem)
	return err
}

// RefreshPreview updates the conversation's last-message preview.
func (s *ConversationService) RefreshPreview(ctx context.Context, conversationID, content string, at time.Time) error {
	err := storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.RefreshPreview(ctx, conversationID, content, at)
	})
	return translateStoreError(err, "conversation not found")
}

// ListConversations returns the conversations userID participates in.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := storageCall(ctx, s.timeout, func(ctx context.Context) ([]*domain.Conversation, error) {
		return s.store.ListConversationsForUser(ctx, userID)
	})
	if err != nil {
		return nil, translateStoreError(err, "conversations not found")
	}
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	return convs, nil
}

// ListMessages returns a conversation's messages to one of its participants.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID string, limit int) ([]*domain.Message, error) {
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultMessagePage {
		limit = defaultMessagePage
	}

	msgs, err := storageCall(ctx, s.timeout, func(ctx context.Context) ([]*domain.Message, error) {
		return s.store.ListMessages(ctx, conversationID, limit)
	})
	if err != nil {
		return nil, translateStoreError(err, "conversation not found")
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// PostMessage appends a participant's message and refreshes the preview.
func (s *ConversationService) PostMessage(ctx context.Context, userID, conversationID string, req PostMessageRequest) (*domain.Message, error) {
	req.Content = normalizeText(req.Content)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	msg, err := s.append(ctx, conversationID, userID, req.Content, domain.MessageUser)
	if err != nil {
		return nil, err
	}
	if err := s.RefreshPreview(ctx, conversationID, msg.Content, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to refresh conversation preview", "conversation_id", conversationID, "error", err)
	}
	return msg, nil
}

func (s *ConversationService) append(ctx context.Context, conversationID, senderID, content string, kind domain.MessageKind) (*domain.Message, error) {
	messageID, err := id.Generate(id.PrefixMessage)
	if err != nil {
		return nil, fmt.Errorf("generate message ID: %w", err)
	}

	msg := &domain.Message{
		ID:             messageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        normalizeText(content),
		Kind:           kind,
		CreatedAt:      time.Now(),
	}
	if err := storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.AppendMessage(ctx, msg)
	}); err != nil {
		return nil, translateStoreError(err, "conversation not found")
	}
	return msg, nil
}

func (s *ConversationService) participantConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := storageCall(ctx, s.timeout, func(ctx context.Context) (*domain.Conversation, error) {
		return s.store.GetConversation(ctx, conversationID)
	})
	if err != nil {
		return nil, translateStoreError(err, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return nil, domainerrors.NotFound("conversation not found")
	}
	return conv, nil
}
