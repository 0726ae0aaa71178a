package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

const outboxColumns = `id, invitation_id, property_id, tenant_id, attempts, last_error, created_at, processed_at`

func scanAssignmentEntry(sc scanner) (*domain.AssignmentEntry, error) {
	var (
		e           domain.AssignmentEntry
		lastError   sql.NullString
		createdAt   string
		processedAt sql.NullString
	)
	err := sc.Scan(&e.ID, &e.InvitationID, &e.PropertyID, &e.TenantID, &e.Attempts, &lastError, &createdAt, &processedAt)
	if err != nil {
		return nil, err
	}

	e.LastError = lastError.String
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.ProcessedAt, err = parseNullableTime(processedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ApplyAssignment applies a pending outbox entry: set-add the tenant, mark the
// property rented, and mark the entry processed, in one transaction.
// Safe to call any number of times. An entry whose invitation is no longer
// accepted is retired without touching the property, so a stale entry cannot
// re-add a removed tenant. Returns store.ErrNotFound if the entry is gone.
func (s *Store) ApplyAssignment(ctx context.Context, entryID string, at time.Time) (bool, error) {
	var applied bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+outboxColumns+` FROM assignment_outbox WHERE id = ?`, entryID)
		entry, err := scanAssignmentEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return classify(err)
		}
		if entry.IsProcessed() {
			return nil
		}

		var accepted int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM invitations
			WHERE id = ? AND property_id = ? AND tenant_id = ? AND status = 'accepted'`,
			entry.InvitationID, entry.PropertyID, entry.TenantID).Scan(&accepted)
		if err != nil {
			return classify(err)
		}

		if accepted > 0 {
			if _, err := addTenant(ctx, tx, entry.PropertyID, entry.TenantID, domain.AssignmentInvitation, at); err != nil {
				return err
			}
			applied = true
		} else {
			s.logger.Debug("retiring stale assignment entry",
				"entry_id", entry.ID,
				"invitation_id", entry.InvitationID,
			)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE assignment_outbox SET processed_at = ?, attempts = attempts + 1, last_error = NULL
			WHERE id = ?`, formatTime(at), entryID)
		return classify(err)
	})
	return applied, err
}

// ListPendingAssignments returns unprocessed entries, oldest first.
func (s *Store) ListPendingAssignments(ctx context.Context, limit int) ([]*domain.AssignmentEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM assignment_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanAssignmentEntry)
}

// RecordAssignmentFailure bumps the attempt counter and stores the last error.
func (s *Store) RecordAssignmentFailure(ctx context.Context, entryID, msg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assignment_outbox SET attempts = attempts + 1, last_error = ?
		WHERE id = ? AND processed_at IS NULL`, msg, entryID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ReapplyAssignment restores the assignment of an accepted invitation. The
// invitation is re-read inside the transaction, so a concurrent removal that
// deleted it wins and nothing is re-added.
func (s *Store) ReapplyAssignment(ctx context.Context, invitationID string, at time.Time) (bool, error) {
	var applied bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var propertyID, tenantID string
		err := tx.QueryRowContext(ctx, `
			SELECT property_id, tenant_id FROM invitations
			WHERE id = ? AND status = 'accepted'`, invitationID).Scan(&propertyID, &tenantID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return classify(err)
		}

		applied, err = addTenant(ctx, tx, propertyID, tenantID, domain.AssignmentInvitation, at)
		return err
	})
	return applied, err
}
