package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/notify"
	"github.com/rentwise/rentwise-server/internal/store"
	"github.com/rentwise/rentwise-server/internal/store/sqlite"
)

const (
	testLandlord = "user-landlord"
	testTenant   = "user-tenant"
	testOutsider = "user-outsider"
)

type testEnv struct {
	store         *sqlite.Store
	repo          *flakyRepo
	conversations *ConversationService
	convFaults    *faultyConversations
	notifier      *faultyNotifier
	users         *UserDirectory
	properties    *PropertyService
	notifications *NotificationService
	invitations   *InvitationService
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestEnv wires the services over a real SQLite store with fault
// injection points on the repository, conversations, and notifier.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	env := &testEnv{store: s}
	env.repo = &flakyRepo{Store: s}
	env.conversations = NewConversationService(s, testLogger(), time.Second)
	env.convFaults = &faultyConversations{Conversations: env.conversations}
	env.notifier = &faultyNotifier{Notifier: notify.NewDispatcher(s, nil, testLogger())}
	env.users = NewUserDirectory(s, testLogger(), time.Second)
	env.properties = NewPropertyService(s, testLogger(), time.Second)
	env.notifications = NewNotificationService(s, testLogger(), time.Second)
	env.invitations = NewInvitationService(env.repo, env.convFaults, env.notifier, env.users, testLogger(), InvitationConfig{
		StorageTimeout: 5 * time.Second,
	})

	for _, u := range []*domain.User{
		{ID: testLandlord, DisplayName: "Lena Landlord", Email: "lena@example.com", Role: domain.RoleLandlord},
		{ID: testTenant, DisplayName: "Tom Tenant", Email: "tom@example.com", Role: domain.RoleTenant},
		{ID: testOutsider, DisplayName: "Olga", Email: "olga@example.com", Role: domain.RoleTenant},
	} {
		u.CreatedAt = time.Now()
		require.NoError(t, s.CreateUser(context.Background(), u))
	}
	return env
}

func (e *testEnv) createProperty(t *testing.T, title string) *domain.Property {
	t.Helper()
	p, err := e.properties.CreateProperty(context.Background(), testLandlord, CreatePropertyRequest{
		Title:   title,
		Address: "12 Harbour Road",
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) invite(t *testing.T, propertyID, tenantID string) *domain.Invitation {
	t.Helper()
	res, err := e.invitations.CreateInvitation(context.Background(), testLandlord, CreateInvitationRequest{
		PropertyID: propertyID,
		TenantID:   tenantID,
		Message:    "join",
	})
	require.NoError(t, err)
	return res.Invitation
}

func (e *testEnv) property(t *testing.T, id string) *domain.Property {
	t.Helper()
	p, err := e.store.GetProperty(context.Background(), id)
	require.NoError(t, err)
	return p
}

// flakyRepo lets tests fail individual repository calls.
type flakyRepo struct {
	*sqlite.Store
	failApply  atomic.Bool
	failAccept atomic.Bool
	acceptErr  error
}

func (r *flakyRepo) ApplyAssignment(ctx context.Context, entryID string, at time.Time) (bool, error) {
	if r.failApply.Load() {
		return false, store.ErrUnavailable.WithCause(errors.New("database is locked"))
	}
	return r.Store.ApplyAssignment(ctx, entryID, at)
}

func (r *flakyRepo) AcceptInvitation(ctx context.Context, id, tenantID string, at time.Time) (*domain.Invitation, *domain.AssignmentEntry, error) {
	if r.failAccept.Load() {
		return nil, nil, r.acceptErr
	}
	return r.Store.AcceptInvitation(ctx, id, tenantID, at)
}

type faultyConversations struct {
	Conversations
	failCreate atomic.Bool
	failAppend atomic.Bool
}

func (c *faultyConversations) CreateConversation(ctx context.Context, seed ConversationSeed) (string, error) {
	if c.failCreate.Load() {
		return "", errors.New("conversation backend down")
	}
	return c.Conversations.CreateConversation(ctx, seed)
}

func (c *faultyConversations) AppendMessage(ctx context.Context, conversationID, senderID, content string) error {
	if c.failAppend.Load() {
		return errors.New("conversation backend down")
	}
	return c.Conversations.AppendMessage(ctx, conversationID, senderID, content)
}

type faultyNotifier struct {
	Notifier
	fail atomic.Bool
	sent atomic.Int32
}

func (n *faultyNotifier) Notify(ctx context.Context, notification domain.Notification) error {
	if n.fail.Load() {
		return errors.New("push gateway unreachable")
	}
	n.sent.Add(1)
	return n.Notifier.Notify(ctx, notification)
}
