package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

// propertyColumns must match the scan order in scanProperty.
const propertyColumns = `id, landlord_id, title, address, status, created_at, updated_at`

// expectedStatusSQL computes the status implied by the tenant set for the row in properties.
const expectedStatusSQL = `CASE
		WHEN EXISTS (SELECT 1 FROM property_tenants pt WHERE pt.property_id = properties.id) THEN 'rented'
		WHEN properties.status = 'maintenance' THEN 'maintenance'
		ELSE 'available'
	END`

func scanProperty(sc scanner) (*domain.Property, error) {
	var (
		p         domain.Property
		status    string
		createdAt string
		updatedAt string
	)
	if err := sc.Scan(&p.ID, &p.LandlordID, &p.Title, &p.Address, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	p.Status = domain.PropertyStatus(status)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	p.TenantIDs = []string{}
	return &p, nil
}

// CreateProperty inserts a new property with an empty tenant set.
func (s *Store) CreateProperty(ctx context.Context, p *domain.Property) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (`+propertyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LandlordID, p.Title, p.Address, string(p.Status),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return classify(err)
}

// GetProperty retrieves a property with its tenant set.
// Returns store.ErrNotFound if the property does not exist.
func (s *Store) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}

	if err := s.loadTenants(ctx, []*domain.Property{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProperties returns every property. Used by reconciliation.
func (s *Store) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	return s.listProperties(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY created_at, id`)
}

// ListPropertiesByLandlord returns the properties owned by landlordID.
func (s *Store) ListPropertiesByLandlord(ctx context.Context, landlordID string) ([]*domain.Property, error) {
	return s.listProperties(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE landlord_id = ? ORDER BY created_at, id`, landlordID)
}

// ListPropertiesByTenant returns the properties tenantID is assigned to.
func (s *Store) ListPropertiesByTenant(ctx context.Context, tenantID string) ([]*domain.Property, error) {
	return s.listProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE id IN (SELECT property_id FROM property_tenants WHERE tenant_id = ?)
		ORDER BY created_at, id`, tenantID)
}

func (s *Store) listProperties(ctx context.Context, query string, args ...any) ([]*domain.Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	props, err := collect(rows, scanProperty)
	if err != nil {
		return nil, err
	}
	if err := s.loadTenants(ctx, props); err != nil {
		return nil, err
	}
	return props, nil
}

// loadTenants fills TenantIDs for props with one query.
func (s *Store) loadTenants(ctx context.Context, props []*domain.Property) error {
	if len(props) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Property, len(props))
	placeholders := make([]string, 0, len(props))
	args := make([]any, 0, len(props))
	for _, p := range props {
		byID[p.ID] = p
		placeholders = append(placeholders, "?")
		args = append(args, p.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, tenant_id FROM property_tenants
		WHERE property_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY assigned_at, tenant_id`, args...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var propertyID, tenantID string
		if err := rows.Scan(&propertyID, &tenantID); err != nil {
			return err
		}
		if p := byID[propertyID]; p != nil {
			p.TenantIDs = append(p.TenantIDs, tenantID)
		}
	}
	return classify(rows.Err())
}

// AddTenant adds tenantID to the property's tenant set and marks it rented.
// Returns store.ErrNotFound if the property does not exist.
func (s *Store) AddTenant(ctx context.Context, propertyID, tenantID string, source domain.AssignmentSource) (bool, error) {
	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = addTenant(ctx, tx, propertyID, tenantID, source, time.Now())
		return err
	})
	return added, err
}

// addTenant is the set-add effect shared by direct assignment and the outbox.
func addTenant(ctx context.Context, ex execer, propertyID, tenantID string, source domain.AssignmentSource, now time.Time) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE properties SET status = 'rented', updated_at = ?
		WHERE id = ?`, formatTime(now), propertyID)
	if err != nil {
		return false, classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, store.ErrNotFound
	}

	res, err = ex.ExecContext(ctx, `
		INSERT INTO property_tenants (property_id, tenant_id, source, assigned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (property_id, tenant_id) DO NOTHING`,
		propertyID, tenantID, string(source), formatTime(now))
	if err != nil {
		return false, classify(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveTenant removes tenantID from the set, resets status when the set
// becomes empty, and deletes every invitation for the pair, all in one transaction.
func (s *Store) RemoveTenant(ctx context.Context, propertyID, tenantID string) (*store.TenantRemoval, error) {
	result := &store.TenantRemoval{}
	now := formatTime(time.Now())

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM properties WHERE id = ?`, propertyID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return classify(err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM property_tenants WHERE property_id = ? AND tenant_id = ?`, propertyID, tenantID)
		if err != nil {
			return classify(err)
		}
		n, _ := res.RowsAffected()
		result.Removed = n > 0

		_, err = tx.ExecContext(ctx, `
			UPDATE properties SET status = 'available', updated_at = ?
			WHERE id = ? AND status = 'rented'
			AND NOT EXISTS (SELECT 1 FROM property_tenants WHERE property_id = ?)`,
			now, propertyID, propertyID)
		if err != nil {
			return classify(err)
		}

		result.InvitationsDeleted, err = deleteInvitationsForPair(ctx, tx, propertyID, tenantID)
		if err != nil {
			return err
		}

		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM properties WHERE id = ?`, propertyID).Scan(&status); err != nil {
			return classify(err)
		}
		result.Status = domain.PropertyStatus(status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetPropertyStatus sets the status of a property with no tenants.
func (s *Store) SetPropertyStatus(ctx context.Context, id string, status domain.PropertyStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties SET status = ?, updated_at = ?
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM property_tenants WHERE property_id = ?)`,
		string(status), formatTime(time.Now()), id, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM properties WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return classify(err)
	}
	return store.ErrPropertyOccupied
}

// SyncPropertyStatus recomputes status from the tenant set in a single statement,
// so a concurrent assignment cannot be overwritten by a stale read.
func (s *Store) SyncPropertyStatus(ctx context.Context, id string) (domain.PropertyStatus, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		UPDATE properties SET status = `+expectedStatusSQL+`, updated_at = ?
		WHERE id = ? AND status <> `+expectedStatusSQL+`
		RETURNING status`,
		formatTime(time.Now()), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		p, getErr := s.GetProperty(ctx, id)
		if getErr != nil {
			return "", false, getErr
		}
		return p.Status, false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return domain.PropertyStatus(status), true, nil
}

// ListOrphanAssignments returns assignments that should be backed by an accepted
// invitation but are not. Direct landlord assignments are never orphans.
func (s *Store) ListOrphanAssignments(ctx context.Context) ([]domain.OrphanAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pt.property_id, pt.tenant_id FROM property_tenants pt
		WHERE pt.source <> ?
		AND NOT EXISTS (
			SELECT 1 FROM invitations i
			WHERE i.property_id = pt.property_id AND i.tenant_id = pt.tenant_id AND i.status = 'accepted'
		)
		ORDER BY pt.property_id, pt.tenant_id`, string(domain.AssignmentDirect))
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, func(sc scanner) (domain.OrphanAssignment, error) {
		var o domain.OrphanAssignment
		err := sc.Scan(&o.PropertyID, &o.TenantID)
		return o, err
	})
}

// UpsertProperty inserts or replaces a property and merges its tenant set.
// Used by the legacy import; existing assignments are kept.
func (s *Store) UpsertProperty(ctx context.Context, p *domain.Property) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO properties (`+propertyColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				landlord_id = excluded.landlord_id,
				title = excluded.title,
				address = excluded.address,
				status = excluded.status,
				updated_at = excluded.updated_at`,
			p.ID, p.LandlordID, p.Title, p.Address, string(p.Status),
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
		if err != nil {
			return classify(fmt.Errorf("upsert property %s: %w", p.ID, err))
		}

		for _, tenantID := range p.TenantIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO property_tenants (property_id, tenant_id, source, assigned_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (property_id, tenant_id) DO NOTHING`,
				p.ID, tenantID, string(domain.AssignmentLegacy), formatTime(p.UpdatedAt))
			if err != nil {
				return classify(err)
			}
		}
		return nil
	})
}
