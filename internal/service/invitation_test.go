package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/store"
)

func TestInvitationLifecycle_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Harbour Flat")
	assert.Equal(t, domain.PropertyAvailable, p.Status)
	assert.Empty(t, p.TenantIDs)

	created, err := env.invitations.CreateInvitation(ctx, testLandlord, CreateInvitationRequest{
		PropertyID: p.ID, TenantID: testTenant, Message: "join",
	})
	require.NoError(t, err)
	inv := created.Invitation
	assert.Equal(t, domain.InvitationPending, inv.Status)
	assert.NotEmpty(t, created.ConversationID)
	assert.Empty(t, created.Warnings)

	_, err = env.invitations.CreateInvitation(ctx, testLandlord, CreateInvitationRequest{
		PropertyID: p.ID, TenantID: testTenant, Message: "join again",
	})
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	accepted, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, accepted.Invitation.Status)
	assert.NotNil(t, accepted.Invitation.AcceptedAt)
	require.NotNil(t, accepted.Property)
	assert.Equal(t, domain.PropertyRented, accepted.Property.Status)
	assert.Equal(t, []string{testTenant}, accepted.Property.TenantIDs)
	assert.Empty(t, accepted.Warnings)

	_, err = env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)

	removed, err := env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)
	assert.True(t, removed.Changed)
	assert.Equal(t, 1, removed.InvitationsDeleted)
	assert.Equal(t, domain.PropertyAvailable, removed.Property.Status)
	assert.Empty(t, removed.Property.TenantIDs)

	_, err = env.store.GetInvitation(ctx, inv.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	again, err := env.invitations.CreateInvitation(ctx, testLandlord, CreateInvitationRequest{
		PropertyID: p.ID, TenantID: testTenant, Message: "join",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, again.Invitation.Status)
}

func TestCreateInvitation_Rejections(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Loft")

	tests := []struct {
		name       string
		landlordID string
		req        CreateInvitationRequest
		want       error
	}{
		{
			name:       "self invitation",
			landlordID: testLandlord,
			req:        CreateInvitationRequest{PropertyID: p.ID, TenantID: testLandlord},
			want:       domainerrors.ErrValidation,
		},
		{
			name:       "malformed tenant id",
			landlordID: testLandlord,
			req:        CreateInvitationRequest{PropertyID: p.ID, TenantID: "not an id!"},
			want:       domainerrors.ErrValidation,
		},
		{
			name:       "unknown tenant",
			landlordID: testLandlord,
			req:        CreateInvitationRequest{PropertyID: p.ID, TenantID: "user-ghost"},
			want:       domainerrors.ErrValidation,
		},
		{
			name:       "unknown property",
			landlordID: testLandlord,
			req:        CreateInvitationRequest{PropertyID: "prop-missing", TenantID: testTenant},
			want:       domainerrors.ErrNotFound,
		},
		{
			name:       "not the landlord",
			landlordID: testOutsider,
			req:        CreateInvitationRequest{PropertyID: p.ID, TenantID: testTenant},
			want:       domainerrors.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.invitations.CreateInvitation(context.Background(), tt.landlordID, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	invs, err := env.store.ListInvitationsByProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, invs, "rejected requests must not persist anything")
}

func TestCreateInvitation_SideEffectFailuresAreWarnings(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Cottage")
	env.convFaults.failCreate.Store(true)
	env.notifier.fail.Store(true)

	res, err := env.invitations.CreateInvitation(context.Background(), testLandlord, CreateInvitationRequest{
		PropertyID: p.ID, TenantID: testTenant,
	})
	require.NoError(t, err)
	assert.Empty(t, res.ConversationID)

	steps := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		steps = append(steps, w.Step)
	}
	assert.ElementsMatch(t, []string{StepConversation, StepNotification}, steps)

	stored, err := env.store.GetInvitation(context.Background(), res.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, stored.Status)
}

func TestCreateInvitation_NotifiesTenant(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Cottage")
	inv := env.invite(t, p.ID, testTenant)

	list, err := env.notifications.ListNotifications(context.Background(), testTenant, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationInvitationReceived, list[0].Type)
	assert.Equal(t, inv.ID, list[0].Data["invitationId"])
	assert.Contains(t, list[0].Body, "Lena Landlord")
}

func TestAcceptInvitation_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Contested")
	inv := env.invite(t, p.ID, testTenant)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		processed int
		other     []error
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.invitations.AcceptInvitation(context.Background(), testTenant, inv.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case domainerrors.Is(err, domainerrors.ErrAlreadyProcessed):
				processed++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, processed)

	got := env.property(t, p.ID)
	assert.Equal(t, []string{testTenant}, got.TenantIDs)
	assert.Equal(t, domain.PropertyRented, got.Status)
}

func TestAcceptDecline_TerminalStatesAreFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Studio")

	accepted := env.invite(t, p.ID, testTenant)
	_, err := env.invitations.AcceptInvitation(ctx, testTenant, accepted.ID)
	require.NoError(t, err)

	declined := env.invite(t, p.ID, testOutsider)
	_, err = env.invitations.DeclineInvitation(ctx, testOutsider, declined.ID)
	require.NoError(t, err)

	for _, tc := range []struct {
		tenantID, invitationID string
	}{
		{testTenant, accepted.ID},
		{testOutsider, declined.ID},
	} {
		_, err := env.invitations.AcceptInvitation(ctx, tc.tenantID, tc.invitationID)
		require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)
		_, err = env.invitations.DeclineInvitation(ctx, tc.tenantID, tc.invitationID)
		require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)
	}

	got, err := env.store.GetInvitation(ctx, declined.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationDeclined, got.Status)
	assert.Equal(t, []string{testTenant}, env.property(t, p.ID).TenantIDs)
}

func TestAcceptInvitation_OnlyAddressedTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Annex")
	inv := env.invite(t, p.ID, testTenant)

	_, err := env.invitations.AcceptInvitation(ctx, testOutsider, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)
	_, err = env.invitations.DeclineInvitation(ctx, testLandlord, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)

	got, err := env.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, got.Status)
}

func TestAcceptInvitation_UnknownInvitation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.invitations.AcceptInvitation(context.Background(), testTenant, "inv-missing")
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)

	_, err = env.invitations.AcceptInvitation(context.Background(), testTenant, "")
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAcceptInvitation_StorageUnavailableIsNotAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Mews")
	inv := env.invite(t, p.ID, testTenant)

	env.repo.acceptErr = store.ErrUnavailable.WithCause(fmt.Errorf("database is locked"))
	env.repo.failAccept.Store(true)

	_, err := env.invitations.AcceptInvitation(context.Background(), testTenant, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domainerrors.ErrAlreadyProcessed)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.True(t, domainErr.Code.Retriable())

	// The retry succeeds because nothing changed.
	env.repo.failAccept.Store(false)
	_, err = env.invitations.AcceptInvitation(context.Background(), testTenant, inv.ID)
	require.NoError(t, err)
}

func TestAcceptInvitation_ClosedStore(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Mews")
	inv := env.invite(t, p.ID, testTenant)
	require.NoError(t, env.store.Close())

	_, err := env.invitations.AcceptInvitation(context.Background(), testTenant, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
}

func TestAcceptInvitation_DeferredAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Terrace")
	inv := env.invite(t, p.ID, testTenant)

	env.repo.failApply.Store(true)
	res, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, StepPropertyAssignment, res.Warnings[0].Step)
	assert.Equal(t, domain.InvitationAccepted, res.Invitation.Status)
	assert.Empty(t, res.Property.TenantIDs)

	pending, err := env.store.ListPendingAssignments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].LastError)

	env.repo.failApply.Store(false)
	drain, err := env.invitations.DrainOutbox(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, drain.Applied)

	got := env.property(t, p.ID)
	assert.Equal(t, []string{testTenant}, got.TenantIDs)
	assert.Equal(t, domain.PropertyRented, got.Status)
}

func TestAcceptInvitation_LifecycleMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Garden")
	inv := env.invite(t, p.ID, testTenant)

	_, err := env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)

	conv, err := env.conversations.FindConversationByInvitation(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)

	msgs, err := env.conversations.ListMessages(ctx, testLandlord, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "join", msgs[0].Content)
	assert.Equal(t, testLandlord, msgs[0].SenderID)
	assert.Equal(t, "Tom Tenant accepted the invitation", msgs[1].Content)
	assert.Equal(t, testTenant, msgs[1].SenderID)

	convs, err := env.conversations.ListConversations(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Tom Tenant accepted the invitation", convs[0].LastMessage)

	list, err := env.notifications.ListNotifications(ctx, testLandlord, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationInvitationAccepted, list[0].Type)
}

func TestAcceptInvitation_SideEffectFailures(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProperty(t, "Garden")
	inv := env.invite(t, p.ID, testTenant)

	env.convFaults.failAppend.Store(true)
	env.notifier.fail.Store(true)

	res, err := env.invitations.AcceptInvitation(context.Background(), testTenant, inv.ID)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, []string{testTenant}, res.Property.TenantIDs)
}

func TestDeclineInvitation_LeavesPropertyUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Barn")
	inv := env.invite(t, p.ID, testTenant)

	res, err := env.invitations.DeclineInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationDeclined, res.Invitation.Status)
	assert.NotNil(t, res.Invitation.DeclinedAt)
	assert.Empty(t, res.Warnings)

	got := env.property(t, p.ID)
	assert.Equal(t, domain.PropertyAvailable, got.Status)
	assert.Empty(t, got.TenantIDs)

	// A declined invitation no longer blocks a new one.
	env.invite(t, p.ID, testTenant)
}

func TestRemoveTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Duplex")

	for _, tenantID := range []string{testTenant, testOutsider} {
		inv := env.invite(t, p.ID, tenantID)
		_, err := env.invitations.AcceptInvitation(ctx, tenantID, inv.ID)
		require.NoError(t, err)
	}

	t.Run("not the landlord", func(t *testing.T) {
		_, err := env.invitations.RemoveTenant(ctx, testOutsider, p.ID, testTenant)
		require.ErrorIs(t, err, domainerrors.ErrForbidden)
	})

	t.Run("one of two tenants keeps the property rented", func(t *testing.T) {
		res, err := env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testTenant)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, domain.PropertyRented, res.Property.Status)
		assert.Equal(t, []string{testOutsider}, res.Property.TenantIDs)
	})

	t.Run("removing an absent tenant is a no-op", func(t *testing.T) {
		res, err := env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testTenant)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Zero(t, res.InvitationsDeleted)
	})

	t.Run("last tenant frees the property", func(t *testing.T) {
		res, err := env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testOutsider)
		require.NoError(t, err)
		assert.Equal(t, domain.PropertyAvailable, res.Property.Status)
		assert.Empty(t, res.Property.TenantIDs)
	})

	list, err := env.notifications.ListNotifications(ctx, testTenant, false)
	require.NoError(t, err)
	var removedNotices int
	for _, n := range list {
		if n.Type == domain.NotificationTenantRemoved {
			removedNotices++
		}
	}
	assert.Equal(t, 1, removedNotices, "only an actual removal notifies")
}

func TestRemoveTenant_PendingInvitationIsDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Bungalow")
	inv := env.invite(t, p.ID, testTenant)

	res, err := env.invitations.RemoveTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.InvitationsDeleted)

	_, err = env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)
}

func TestAssignTenant_Direct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Penthouse")

	res, err := env.invitations.AssignTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.PropertyRented, res.Property.Status)

	again, err := env.invitations.AssignTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, []string{testTenant}, again.Property.TenantIDs)

	_, err = env.invitations.AssignTenant(ctx, testLandlord, p.ID, "user-ghost")
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestGetInvitation_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Lodge")
	inv := env.invite(t, p.ID, testTenant)

	for _, userID := range []string{testLandlord, testTenant} {
		got, err := env.invitations.GetInvitation(ctx, userID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, got.ID)
	}

	_, err := env.invitations.GetInvitation(ctx, testOutsider, inv.ID)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestListInvitations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Lodge")
	env.invite(t, p.ID, testTenant)
	env.invite(t, p.ID, testOutsider)

	issued, err := env.invitations.ListInvitations(ctx, testLandlord, true)
	require.NoError(t, err)
	assert.Len(t, issued, 2)

	received, err := env.invitations.ListInvitations(ctx, testTenant, false)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	none, err := env.invitations.ListInvitations(ctx, testLandlord, false)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	byProperty, err := env.invitations.ListPropertyInvitations(ctx, testLandlord, p.ID)
	require.NoError(t, err)
	assert.Len(t, byProperty, 2)

	_, err = env.invitations.ListPropertyInvitations(ctx, testOutsider, p.ID)
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}
