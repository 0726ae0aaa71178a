package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/service"
)

func TestReconcile_AdminOnly(t *testing.T) {
	ts := setupTestServer(t)

	for _, userID := range []string{testLandlordID, testTenantID} {
		resp := ts.api.Post("/api/v1/admin/reconcile", ts.auth(userID))
		assert.Equal(t, http.StatusForbidden, resp.Code, userID)
		assert.Equal(t, string(domainerrors.CodeForbidden), decode[any](t, resp.Body.Bytes()).Code)
	}

	resp := ts.api.Post("/api/v1/admin/reconcile")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestReconcile_RestoresMissingAssignment(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	p := ts.createProperty(t, "Harbour Flat")
	inv := ts.invite(t, p.ID, testTenantID).Invitation

	resp := ts.api.Post("/api/v1/invitations/"+inv.ID+"/accept", ts.auth(testTenantID))
	require.Equal(t, http.StatusOK, resp.Code)

	// Drop the tenant behind the service's back, keeping the accepted invitation.
	accepted, err := ts.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	_, err = ts.store.RemoveTenant(ctx, p.ID, testTenantID)
	require.NoError(t, err)
	require.NoError(t, ts.store.UpsertInvitation(ctx, accepted))

	resp = ts.api.Post("/api/v1/admin/reconcile", ts.auth(testAdminID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	report := decode[*domain.RepairReport](t, resp.Body.Bytes()).Data
	require.Len(t, report.AssignmentsRepaired, 1)
	assert.Equal(t, domain.OrphanAssignment{PropertyID: p.ID, TenantID: testTenantID}, report.AssignmentsRepaired[0])

	resp = ts.api.Get("/api/v1/properties/"+p.ID, ts.auth(testLandlordID))
	prop := decode[*domain.Property](t, resp.Body.Bytes()).Data
	assert.Equal(t, []string{testTenantID}, prop.TenantIDs)
	assert.Equal(t, domain.PropertyRented, prop.Status)

	// A second run has nothing to do.
	resp = ts.api.Post("/api/v1/admin/reconcile", ts.auth(testAdminID))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[*domain.RepairReport](t, resp.Body.Bytes()).Data.Clean())
}

func TestDrainOutbox_Empty(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/admin/outbox/drain", ts.auth(testAdminID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, service.DrainReport{}, *decode[*service.DrainReport](t, resp.Body.Bytes()).Data)
}

func TestProvisionUser(t *testing.T) {
	ts := setupTestServer(t)

	body := map[string]any{
		"displayName": "Nina New",
		"email":       "nina@example.com",
		"role":        "tenant",
	}

	resp := ts.api.Post("/api/v1/admin/users", ts.auth(testLandlordID), body)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Post("/api/v1/admin/users", ts.auth(testAdminID), body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	user := decode[*domain.User](t, resp.Body.Bytes()).Data
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, domain.RoleTenant, user.Role)

	resp = ts.api.Post("/api/v1/admin/users", ts.auth(testAdminID), body)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetCurrentUser(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/users/me", ts.auth(testTenantID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, testTenantID, decode[*domain.User](t, resp.Body.Bytes()).Data.ID)

	resp = ts.api.Get("/api/v1/users/me", "Authorization: Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
