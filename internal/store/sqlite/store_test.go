package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestProperty creates an available property owned by landlordID.
func insertTestProperty(t *testing.T, s *Store, id, landlordID string) *domain.Property {
	t.Helper()
	now := time.Now()
	p := &domain.Property{
		Record:     domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		LandlordID: landlordID,
		Title:      "Unit " + id,
		Address:    "1 Main St",
		Status:     domain.PropertyAvailable,
	}
	if err := s.CreateProperty(context.Background(), p); err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	return p
}

// insertTestInvitation creates a pending invitation for the pair.
func insertTestInvitation(t *testing.T, s *Store, id, propertyID, landlordID, tenantID string) *domain.Invitation {
	t.Helper()
	inv := newInvitation(id, propertyID, landlordID, tenantID)
	if err := s.CreateInvitation(context.Background(), inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	return inv
}

func newInvitation(id, propertyID, landlordID, tenantID string) *domain.Invitation {
	now := time.Now()
	return &domain.Invitation{
		Record:     domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		PropertyID: propertyID,
		LandlordID: landlordID,
		TenantID:   tenantID,
		Message:    "join",
		Status:     domain.InvitationPending,
		ExpiresAt:  now.Add(domain.DefaultInvitationTTL),
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"users", "properties", "property_tenants", "invitations",
		"assignment_outbox", "conversations", "messages", "notifications",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.DiscardHandler)

	s1, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), store.ErrUnavailable},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), store.ErrUnavailable},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: invitations.property_id"), store.ErrAlreadyExists},
		{"store error passes through", store.ErrNotPending, store.ErrNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}

	plain := errors.New("syntax error")
	if got := classify(plain); got != plain {
		t.Errorf("unknown errors should pass through, got %v", got)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	_, err := s.GetProperty(context.Background(), "prop_1")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExpiredDeadlineIsUnavailable(t *testing.T) {
	s := newTestStore(t)
	insertTestProperty(t, s, "prop_1", "user_l1")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := s.GetProperty(ctx, "prop_1")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, store.ErrNotPending) || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("transient error must not look semantic: %v", err)
	}
}
