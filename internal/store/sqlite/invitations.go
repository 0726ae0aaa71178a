package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

// invitationColumns must match the scan order in scanInvitation.
const invitationColumns = `id, property_id, landlord_id, tenant_id, message, status,
	created_at, updated_at, expires_at, accepted_at, declined_at`

func scanInvitation(sc scanner) (*domain.Invitation, error) {
	var (
		inv        domain.Invitation
		status     string
		createdAt  string
		updatedAt  string
		expiresAt  string
		acceptedAt sql.NullString
		declinedAt sql.NullString
	)

	err := sc.Scan(
		&inv.ID,
		&inv.PropertyID,
		&inv.LandlordID,
		&inv.TenantID,
		&inv.Message,
		&status,
		&createdAt,
		&updatedAt,
		&expiresAt,
		&acceptedAt,
		&declinedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = domain.InvitationStatus(status)
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if inv.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if inv.AcceptedAt, err = parseNullableTime(acceptedAt); err != nil {
		return nil, err
	}
	if inv.DeclinedAt, err = parseNullableTime(declinedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvitation inserts a new invitation.
// Returns store.ErrAlreadyExists if the pair already has an open invitation;
// the partial unique index is the only admission check.
func (s *Store) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return insertInvitation(ctx, s.db, inv, false)
}

// UpsertInvitation inserts or replaces an invitation by id. Used by the legacy import.
// A stored invitation that is already accepted or declined is left unchanged.
func (s *Store) UpsertInvitation(ctx context.Context, inv *domain.Invitation) error {
	return insertInvitation(ctx, s.db, inv, true)
}

func insertInvitation(ctx context.Context, ex execer, inv *domain.Invitation, upsert bool) error {
	query := `
		INSERT INTO invitations (` + invitationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			landlord_id = excluded.landlord_id,
			tenant_id = excluded.tenant_id,
			message = excluded.message,
			status = excluded.status,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			accepted_at = excluded.accepted_at,
			declined_at = excluded.declined_at
		WHERE invitations.status = 'pending'`
	}

	_, err := ex.ExecContext(ctx, query,
		inv.ID,
		inv.PropertyID,
		inv.LandlordID,
		inv.TenantID,
		inv.Message,
		string(inv.Status),
		formatTime(inv.CreatedAt),
		formatTime(inv.UpdatedAt),
		formatTime(inv.ExpiresAt),
		nullTimeString(inv.AcceptedAt),
		nullTimeString(inv.DeclinedAt),
	)
	if err != nil && isForeignKeyViolation(err) {
		return store.ErrNotFound.WithCause(err)
	}
	return classify(err)
}

// GetInvitation retrieves an invitation by ID.
// Returns store.ErrNotFound if the invitation does not exist.
func (s *Store) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	return getInvitation(ctx, s.db, id)
}

func getInvitation(ctx context.Context, ex execer, id string) (*domain.Invitation, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return inv, nil
}

// AcceptInvitation performs the guarded pending -> accepted transition and
// records the assignment outbox entry in the same transaction.
// Returns store.ErrNotPending when the invitation is missing, addressed to
// another tenant, or no longer pending.
func (s *Store) AcceptInvitation(ctx context.Context, id, tenantID string, at time.Time) (*domain.Invitation, *domain.AssignmentEntry, error) {
	var (
		inv   *domain.Invitation
		entry *domain.AssignmentEntry
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ts := formatTime(at)
		res, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = 'accepted', accepted_at = ?, updated_at = ?
			WHERE id = ? AND tenant_id = ? AND status = 'pending'`,
			ts, ts, id, tenantID)
		if err != nil {
			return classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotPending
		}

		inv, err = getInvitation(ctx, tx, id)
		if err != nil {
			return err
		}

		entry = &domain.AssignmentEntry{
			ID:           uuid.NewString(),
			InvitationID: inv.ID,
			PropertyID:   inv.PropertyID,
			TenantID:     inv.TenantID,
			CreatedAt:    at,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignment_outbox (id, invitation_id, property_id, tenant_id, attempts, created_at)
			VALUES (?, ?, ?, ?, 0, ?)`,
			entry.ID, entry.InvitationID, entry.PropertyID, entry.TenantID, ts)
		return classify(err)
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, entry, nil
}

// DeclineInvitation performs the guarded pending -> declined transition.
func (s *Store) DeclineInvitation(ctx context.Context, id, tenantID string, at time.Time) (*domain.Invitation, error) {
	var inv *domain.Invitation

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ts := formatTime(at)
		res, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = 'declined', declined_at = ?, updated_at = ?
			WHERE id = ? AND tenant_id = ? AND status = 'pending'`,
			ts, ts, id, tenantID)
		if err != nil {
			return classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotPending
		}

		inv, err = getInvitation(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// DeleteInvitationsForPair deletes every invitation for the pair regardless of
// status. Outbox entries go with them through the foreign key.
func (s *Store) DeleteInvitationsForPair(ctx context.Context, propertyID, tenantID string) (int, error) {
	return deleteInvitationsForPair(ctx, s.db, propertyID, tenantID)
}

func deleteInvitationsForPair(ctx context.Context, ex execer, propertyID, tenantID string) (int, error) {
	res, err := ex.ExecContext(ctx,
		`DELETE FROM invitations WHERE property_id = ? AND tenant_id = ?`, propertyID, tenantID)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListInvitationsByProperty returns a property's invitations, newest first.
func (s *Store) ListInvitationsByProperty(ctx context.Context, propertyID string) ([]*domain.Invitation, error) {
	return s.listInvitations(ctx, `WHERE property_id = ? ORDER BY created_at DESC, id`, propertyID)
}

// ListInvitationsByTenant returns invitations addressed to tenantID, newest first.
func (s *Store) ListInvitationsByTenant(ctx context.Context, tenantID string) ([]*domain.Invitation, error) {
	return s.listInvitations(ctx, `WHERE tenant_id = ? ORDER BY created_at DESC, id`, tenantID)
}

// ListInvitationsByLandlord returns invitations issued by landlordID, newest first.
func (s *Store) ListInvitationsByLandlord(ctx context.Context, landlordID string) ([]*domain.Invitation, error) {
	return s.listInvitations(ctx, `WHERE landlord_id = ? ORDER BY created_at DESC, id`, landlordID)
}

// ListAcceptedInvitations returns every accepted invitation. Used by reconciliation.
func (s *Store) ListAcceptedInvitations(ctx context.Context) ([]*domain.Invitation, error) {
	return s.listInvitations(ctx, `WHERE status = 'accepted' ORDER BY accepted_at, id`)
}

func (s *Store) listInvitations(ctx context.Context, where string, args ...any) ([]*domain.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations `+where, args...)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanInvitation)
}
