package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
)

func TestCreateProperty(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.properties.CreateProperty(context.Background(), testLandlord, CreatePropertyRequest{
		Title:   "  Canal House  ",
		Address: "3 Lock Lane",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, "prop-"))
	assert.Equal(t, "Canal House", p.Title)
	assert.Equal(t, domain.PropertyAvailable, p.Status)
	assert.Equal(t, testLandlord, p.LandlordID)

	_, err = env.properties.CreateProperty(context.Background(), testLandlord, CreatePropertyRequest{Title: "   "})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestGetProperty_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Private")
	_, err := env.invitations.AssignTenant(ctx, testLandlord, p.ID, testTenant)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		role   domain.Role
		want   error
	}{
		{"landlord", testLandlord, domain.RoleLandlord, nil},
		{"assigned tenant", testTenant, domain.RoleTenant, nil},
		{"admin", "user-admin", domain.RoleAdmin, nil},
		{"stranger", testOutsider, domain.RoleTenant, domainerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.properties.GetProperty(ctx, tt.userID, tt.role, p.ID)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, p.ID, got.ID)
		})
	}
}

func TestListProperties_ByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rented := env.createProperty(t, "Rented")
	env.createProperty(t, "Empty")
	_, err := env.invitations.AssignTenant(ctx, testLandlord, rented.ID, testTenant)
	require.NoError(t, err)

	owned, err := env.properties.ListProperties(ctx, testLandlord, domain.RoleLandlord)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	mine, err := env.properties.ListProperties(ctx, testTenant, domain.RoleTenant)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, rented.ID, mine[0].ID)

	all, err := env.properties.ListProperties(ctx, "user-admin", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := env.properties.ListProperties(ctx, testOutsider, domain.RoleTenant)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProperty(t, "Fixer-upper")

	got, err := env.properties.SetStatus(ctx, testLandlord, p.ID, SetStatusRequest{Status: domain.PropertyMaintenance})
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyMaintenance, got.Status)

	_, err = env.properties.SetStatus(ctx, testLandlord, p.ID, SetStatusRequest{Status: domain.PropertyRented})
	require.ErrorIs(t, err, domainerrors.ErrValidation, "rented is derived from the tenant set")

	_, err = env.properties.SetStatus(ctx, testOutsider, p.ID, SetStatusRequest{Status: domain.PropertyAvailable})
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = env.properties.SetStatus(ctx, testLandlord, "prop-missing", SetStatusRequest{Status: domain.PropertyAvailable})
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	// Accepting an invitation into a property under maintenance rents it.
	inv := env.invite(t, p.ID, testTenant)
	_, err = env.invitations.AcceptInvitation(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyRented, env.property(t, p.ID).Status)

	_, err = env.properties.SetStatus(ctx, testLandlord, p.ID, SetStatusRequest{Status: domain.PropertyMaintenance})
	require.ErrorIs(t, err, domainerrors.ErrConflict)
}
