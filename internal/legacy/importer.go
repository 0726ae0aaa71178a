package legacy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

// maxLineSize bounds a single exported document.
const maxLineSize = 4 << 20

// Target receives normalized records.
type Target interface {
	UpsertProperty(ctx context.Context, p *domain.Property) error
	UpsertInvitation(ctx context.Context, inv *domain.Invitation) error
}

// Reconciler restores assignment state after the import.
type Reconciler interface {
	Reconcile(ctx context.Context) (*domain.RepairReport, error)
}

// Source holds the two newline-delimited Extended JSON exports. Either may be nil.
type Source struct {
	Properties  io.Reader
	Invitations io.Reader
}

// LineError describes a record that was skipped.
type LineError struct {
	Collection string `json:"collection"`
	Line       int    `json:"line"`
	Error      string `json:"error"`
}

// Result summarizes an import.
type Result struct {
	Properties  int                  `json:"properties"`
	Invitations int                  `json:"invitations"`
	Skipped     []LineError          `json:"skipped"`
	Repair      *domain.RepairReport `json:"repair,omitempty"`
}

type propertyDoc struct {
	ID         bson.RawValue   `bson:"_id"`
	LandlordID bson.RawValue   `bson:"landlordId"`
	Title      string          `bson:"title"`
	Address    string          `bson:"address"`
	Status     string          `bson:"status"`
	TenantIDs  []bson.RawValue `bson:"tenantIds"`
	CreatedAt  bson.RawValue   `bson:"createdAt"`
	UpdatedAt  bson.RawValue   `bson:"updatedAt"`
}

type invitationDoc struct {
	ID         bson.RawValue `bson:"_id"`
	PropertyID bson.RawValue `bson:"propertyId"`
	LandlordID bson.RawValue `bson:"landlordId"`
	TenantID   bson.RawValue `bson:"tenantId"`
	Message    string        `bson:"message"`
	Status     string        `bson:"status"`
	CreatedAt  bson.RawValue `bson:"createdAt"`
	UpdatedAt  bson.RawValue `bson:"updatedAt"`
	ExpiresAt  bson.RawValue `bson:"expiresAt"`
	AcceptedAt bson.RawValue `bson:"acceptedAt"`
	DeclinedAt bson.RawValue `bson:"declinedAt"`
}

// Importer loads legacy exports into the store.
type Importer struct {
	target     Target
	reconciler Reconciler
	logger     *slog.Logger
	now        func() time.Time
}

// NewImporter creates an importer. reconciler may be nil to skip the repair pass.
func NewImporter(target Target, reconciler Reconciler, logger *slog.Logger) *Importer {
	return &Importer{target: target, reconciler: reconciler, logger: logger, now: time.Now}
}

// Import upserts every property, then every invitation, then reconciles.
// Malformed records are skipped and reported; a storage failure aborts.
// Running the same import twice leaves the store unchanged.
func (im *Importer) Import(ctx context.Context, src Source) (*Result, error) {
	res := &Result{Skipped: []LineError{}}

	if src.Properties != nil {
		err := eachLine(src.Properties, func(line int, data []byte) error {
			p, err := decodeProperty(data, im.now())
			if err != nil {
				res.skip("properties", line, err)
				return nil
			}
			if err := im.target.UpsertProperty(ctx, p); err != nil {
				return fmt.Errorf("properties line %d: %w", line, err)
			}
			res.Properties++
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if src.Invitations != nil {
		err := eachLine(src.Invitations, func(line int, data []byte) error {
			inv, err := decodeInvitation(data, im.now())
			if err != nil {
				res.skip("invitations", line, err)
				return nil
			}
			err = im.target.UpsertInvitation(ctx, inv)
			switch {
			case errors.Is(err, store.ErrAlreadyExists):
				res.skip("invitations", line, fmt.Errorf("another open invitation exists for property %s and tenant %s", inv.PropertyID, inv.TenantID))
			case errors.Is(err, store.ErrNotFound):
				res.skip("invitations", line, fmt.Errorf("property %s was not imported", inv.PropertyID))
			case err != nil:
				return fmt.Errorf("invitations line %d: %w", line, err)
			default:
				res.Invitations++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	im.logger.Info("legacy import loaded",
		"properties", res.Properties,
		"invitations", res.Invitations,
		"skipped", len(res.Skipped),
	)
	for _, s := range res.Skipped {
		im.logger.Warn("legacy record skipped", "collection", s.Collection, "line", s.Line, "error", s.Error)
	}

	if im.reconciler != nil {
		report, err := im.reconciler.Reconcile(ctx)
		if err != nil {
			return res, fmt.Errorf("reconcile after import: %w", err)
		}
		res.Repair = report
	}
	return res, nil
}

func (r *Result) skip(collection string, line int, err error) {
	r.Skipped = append(r.Skipped, LineError{Collection: collection, Line: line, Error: err.Error()})
}

// eachLine calls fn for every non-blank line of r, numbered from 1.
func eachLine(r io.Reader, fn func(line int, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	return nil
}

func decodeProperty(data []byte, now time.Time) (*domain.Property, error) {
	var doc propertyDoc
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	propertyID, err := CanonicalID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("_id: %w", err)
	}
	landlordID, err := CanonicalID(doc.LandlordID)
	if err != nil {
		return nil, fmt.Errorf("landlordId: %w", err)
	}

	tenants := make([]string, 0, len(doc.TenantIDs))
	for i, raw := range doc.TenantIDs {
		tenantID, err := CanonicalID(raw)
		if err != nil {
			return nil, fmt.Errorf("tenantIds[%d]: %w", i, err)
		}
		if !slices.Contains(tenants, tenantID) {
			tenants = append(tenants, tenantID)
		}
	}

	createdAt, err := canonicalTime(doc.CreatedAt, now)
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	updatedAt, err := canonicalTime(doc.UpdatedAt, createdAt)
	if err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}

	p := &domain.Property{
		Record:     domain.Record{ID: propertyID, CreatedAt: createdAt, UpdatedAt: updatedAt},
		LandlordID: landlordID,
		Title:      strings.TrimSpace(doc.Title),
		Address:    strings.TrimSpace(doc.Address),
		Status:     domain.PropertyStatus(strings.ToLower(strings.TrimSpace(doc.Status))),
		TenantIDs:  tenants,
	}
	if !p.Status.Valid() {
		p.Status = domain.PropertyAvailable
		if len(tenants) > 0 {
			p.Status = domain.PropertyRented
		}
	}
	return p, nil
}

func decodeInvitation(data []byte, now time.Time) (*domain.Invitation, error) {
	var doc invitationDoc
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	inv := &domain.Invitation{
		Message: strings.TrimSpace(doc.Message),
		Status:  domain.InvitationStatus(strings.ToLower(strings.TrimSpace(doc.Status))),
	}
	switch inv.Status {
	case domain.InvitationPending, domain.InvitationAccepted, domain.InvitationDeclined:
	default:
		return nil, fmt.Errorf("status: unknown value %q", doc.Status)
	}

	var err error
	if inv.ID, err = CanonicalID(doc.ID); err != nil {
		return nil, fmt.Errorf("_id: %w", err)
	}
	if inv.PropertyID, err = CanonicalID(doc.PropertyID); err != nil {
		return nil, fmt.Errorf("propertyId: %w", err)
	}
	if inv.LandlordID, err = CanonicalID(doc.LandlordID); err != nil {
		return nil, fmt.Errorf("landlordId: %w", err)
	}
	if inv.TenantID, err = CanonicalID(doc.TenantID); err != nil {
		return nil, fmt.Errorf("tenantId: %w", err)
	}

	if inv.CreatedAt, err = canonicalTime(doc.CreatedAt, now); err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	if inv.UpdatedAt, err = canonicalTime(doc.UpdatedAt, inv.CreatedAt); err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}
	if inv.ExpiresAt, err = canonicalTime(doc.ExpiresAt, inv.CreatedAt.Add(domain.DefaultInvitationTTL)); err != nil {
		return nil, fmt.Errorf("expiresAt: %w", err)
	}
	if inv.AcceptedAt, err = optionalTime(doc.AcceptedAt); err != nil {
		return nil, fmt.Errorf("acceptedAt: %w", err)
	}
	if inv.DeclinedAt, err = optionalTime(doc.DeclinedAt); err != nil {
		return nil, fmt.Errorf("declinedAt: %w", err)
	}

	if inv.Status == domain.InvitationAccepted && inv.AcceptedAt == nil {
		inv.AcceptedAt = &inv.UpdatedAt
	}
	if inv.Status == domain.InvitationDeclined && inv.DeclinedAt == nil {
		inv.DeclinedAt = &inv.UpdatedAt
	}
	return inv, nil
}
