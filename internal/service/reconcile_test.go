package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
)

// seedAccepted writes an accepted invitation directly, bypassing the outbox,
// as the legacy import does.
func seedAccepted(t *testing.T, env *testEnv, id, propertyID, tenantID string) *domain.Invitation {
	t.Helper()
	now := time.Now()
	inv := &domain.Invitation{
		Record:     domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		PropertyID: propertyID,
		LandlordID: testLandlord,
		TenantID:   tenantID,
		Status:     domain.InvitationAccepted,
		ExpiresAt:  now.Add(domain.DefaultInvitationTTL),
		AcceptedAt: &now,
	}
	require.NoError(t, env.store.UpsertInvitation(context.Background(), inv))
	return inv
}

func TestReconcile_RestoresMissingAssignment(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Drifted")
	seedAccepted(t, env, "inv-drifted", p.ID, testTenant)

	report, err := env.invitations.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.InvitationsScanned)
	assert.Equal(t, []domain.OrphanAssignment{{PropertyID: p.ID, TenantID: testTenant}}, report.AssignmentsRepaired)
	assert.Empty(t, report.Failures)

	got := env.property(t, p.ID)
	assert.Equal(t, []string{testTenant}, got.TenantIDs)
	assert.Equal(t, domain.PropertyRented, got.Status)
}

func TestReconcile_DrainsOutbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Queued")
	inv := env.invite(t, p.ID, testTenant)

	env.repo.failApply.Store(true)
	_, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	env.repo.failApply.Store(false)

	report, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OutboxDrained)
	assert.Empty(t, report.AssignmentsRepaired, "the outbox already restored the assignment")

	pending, err := env.store.ListPendingAssignments(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []string{testTenant}, env.property(t, p.ID).TenantIDs)
}

func TestReconcile_RemovalWinsOverQueuedAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Vacated")
	inv := env.invite(t, p.ID, testTenant)

	env.repo.failApply.Store(true)
	_, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	env.repo.failApply.Store(false)

	_, err = env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)

	report, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	got := env.property(t, p.ID)
	assert.Empty(t, got.TenantIDs)
	assert.Equal(t, domain.PropertyAvailable, got.Status)
}

func TestReconcile_ReportsOrphansWithoutRemoving(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	legacy := &domain.Property{
		Record:     domain.Record{ID: "prop-legacy", CreatedAt: now, UpdatedAt: now},
		LandlordID: testLandlord,
		Title:      "Imported",
		Status:     domain.PropertyRented,
		TenantIDs:  []string{testTenant},
	}
	require.NoError(t, env.store.UpsertProperty(ctx, legacy))

	direct := env.createProperty(t, "Handshake deal")
	_, err := env.invitations.AssignTenant(ctx, testLandlord, direct.ID, testOutsider)
	require.NoError(t, err)

	report, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrphanAssignment{{PropertyID: "prop-legacy", TenantID: testTenant}}, report.Orphans)

	assert.Equal(t, []string{testTenant}, env.property(t, "prop-legacy").TenantIDs)
	assert.Equal(t, []string{testOutsider}, env.property(t, direct.ID).TenantIDs)
}

func TestReconcile_CorrectsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	stale := &domain.Property{
		Record:     domain.Record{ID: "prop-stale", CreatedAt: now, UpdatedAt: now},
		LandlordID: testLandlord,
		Title:      "Marked rented, nobody home",
		Status:     domain.PropertyRented,
	}
	require.NoError(t, env.store.UpsertProperty(ctx, stale))

	repairing := env.createProperty(t, "Under repair")
	_, err := env.properties.SetStatus(ctx, testLandlord, repairing.ID, SetStatusRequest{Status: domain.PropertyMaintenance})
	require.NoError(t, err)

	report, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.StatusCorrections, 1)
	assert.Equal(t, domain.StatusCorrection{
		PropertyID: "prop-stale",
		From:       domain.PropertyRented,
		To:         domain.PropertyAvailable,
	}, report.StatusCorrections[0])

	assert.Equal(t, domain.PropertyAvailable, env.property(t, "prop-stale").Status)
	assert.Equal(t, domain.PropertyMaintenance, env.property(t, repairing.ID).Status)
}

func TestReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Twice")
	seedAccepted(t, env, "inv-twice", p.ID, testTenant)

	first, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, first.Clean())

	second, err := env.invitations.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, second.Clean())
	assert.Equal(t, 1, second.InvitationsScanned)
	assert.Equal(t, []string{testTenant}, env.property(t, p.ID).TenantIDs)
}

func TestReconcile_EveryAcceptedInvitationIsAssigned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var props []*domain.Property
	for i := range 4 {
		p := env.createProperty(t, "Block "+string(rune('A'+i)))
		props = append(props, p)
	}
	// Mix of normal acceptances, deferred ones, and imported drift.
	inv := env.invite(t, props[0].ID, testTenant)
	_, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)

	env.repo.failApply.Store(true)
	inv = env.invite(t, props[1].ID, testTenant)
	_, err = env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	env.repo.failApply.Store(false)

	seedAccepted(t, env, "inv-import-1", props[2].ID, testOutsider)
	seedAccepted(t, env, "inv-import-2", props[3].ID, testTenant)

	_, err = env.invitations.Reconcile(ctx)
	require.NoError(t, err)

	accepted, err := env.store.ListAcceptedInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, accepted, 4)
	for _, a := range accepted {
		p := env.property(t, a.PropertyID)
		assert.Contains(t, p.TenantIDs, a.TenantID)
		assert.Equal(t, domain.PropertyRented, p.Status)
	}
}
