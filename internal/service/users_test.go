package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
)

func TestUserDirectory_Provision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.users.Provision(ctx, ProvisionUserRequest{
		DisplayName: "Nina",
		Email:       " nina@example.com ",
		Role:        domain.RoleLandlord,
	})
	require.NoError(t, err)
	assert.Equal(t, "nina@example.com", u.Email)

	got, err := env.users.GetUserByEmail(ctx, "NINA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.users.Provision(ctx, ProvisionUserRequest{Email: "nina@example.com", Role: domain.RoleTenant})
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = env.users.Provision(ctx, ProvisionUserRequest{Email: "nina2@example.com", Role: "janitor"})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestUserDirectory_GetUser(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.users.GetUser(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, "Tom Tenant", u.Name())

	_, err = env.users.GetUser(context.Background(), "user-ghost")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestNotificationService_MarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Notify")
	env.invite(t, p.ID, testTenant)

	unread, err := env.notifications.ListNotifications(ctx, testTenant, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.ErrorIs(t, env.notifications.MarkRead(ctx, testOutsider, unread[0].ID), domainerrors.ErrNotFound)
	require.NoError(t, env.notifications.MarkRead(ctx, testTenant, unread[0].ID))
	require.NoError(t, env.notifications.MarkRead(ctx, testTenant, unread[0].ID))

	unread, err = env.notifications.ListNotifications(ctx, testTenant, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
