package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

const conversationColumns = `id, property_id, landlord_id, tenant_id, related_invitation_id,
	last_message, last_message_time, created_at, updated_at`

const messageColumns = `id, conversation_id, sender_id, content, kind, created_at`

func scanConversation(sc scanner) (*domain.Conversation, error) {
	var (
		c               domain.Conversation
		invitationID    sql.NullString
		lastMessageTime sql.NullString
		createdAt       string
		updatedAt       string
	)
	err := sc.Scan(&c.ID, &c.PropertyID, &c.LandlordID, &c.TenantID, &invitationID,
		&c.LastMessage, &lastMessageTime, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.RelatedInvitationID = invitationID.String
	if c.LastMessageTime, err = parseNullableTime(lastMessageTime); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMessage(sc scanner) (*domain.Message, error) {
	var (
		m         domain.Message
		kind      string
		createdAt string
	)
	if err := sc.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &kind, &createdAt); err != nil {
		return nil, err
	}
	m.Kind = domain.MessageKind(kind)

	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateConversation inserts a conversation and, when seed is non-nil, its first message.
func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation, seed *domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if seed != nil {
			conv.LastMessage = seed.Content
			conv.LastMessageTime = &seed.CreatedAt
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (`+conversationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			conv.ID, conv.PropertyID, conv.LandlordID, conv.TenantID,
			nullString(conv.RelatedInvitationID), conv.LastMessage, nullTimeString(conv.LastMessageTime),
			formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
		if err != nil {
			return classify(err)
		}

		if seed == nil {
			return nil
		}
		seed.ConversationID = conv.ID
		return insertMessage(ctx, tx, seed)
	})
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// FindConversationByInvitation follows the weak back-reference from an invitation.
// Returns store.ErrNotFound when no conversation references it.
func (s *Store) FindConversationByInvitation(ctx context.Context, invitationID string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE related_invitation_id = ?
		ORDER BY created_at LIMIT 1`, invitationID)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// ListConversationsForUser returns conversations the user participates in,
// most recently active first.
func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE landlord_id = ? OR tenant_id = ?
		ORDER BY COALESCE(last_message_time, created_at) DESC, id`, userID, userID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanConversation)
}

// AppendMessage inserts a message. Returns store.ErrNotFound if the conversation is gone.
func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return insertMessage(ctx, s.db, msg)
}

func insertMessage(ctx context.Context, ex execer, msg *domain.Message) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, string(msg.Kind), formatTime(msg.CreatedAt))
	if err != nil && isForeignKeyViolation(err) {
		return store.ErrNotFound.WithCause(err)
	}
	return classify(err)
}

// RefreshPreview updates the denormalized last-message fields.
func (s *Store) RefreshPreview(ctx context.Context, conversationID, content string, at time.Time) error {
	ts := formatTime(at)
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message = ?, last_message_time = ?, updated_at = ?
		WHERE id = ?`, content, ts, ts, conversationID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListMessages returns up to limit messages in chronological order.
// A limit of zero returns all messages.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanMessage)
}
