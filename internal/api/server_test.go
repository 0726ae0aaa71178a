package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/notify"
	"github.com/rentwise/rentwise-server/internal/service"
	"github.com/rentwise/rentwise-server/internal/sse"
	"github.com/rentwise/rentwise-server/internal/store/sqlite"
)

const (
	testLandlordID = "user-landlord"
	testTenantID   = "user-tenant"
	testOtherID    = "user-other"
	testAdminID    = "user-admin"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	Version   int    `json:"v"`
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	store   *sqlite.Store
	tokens  map[string]string
	manager *sse.Manager
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokenService, err := auth.NewTokenService(strings.Repeat("ab", 32), time.Hour)
	require.NoError(t, err)

	manager := sse.NewManager(testLogger())
	users := service.NewUserDirectory(st, testLogger(), time.Second)
	conversations := service.NewConversationService(st, testLogger(), time.Second)
	dispatcher := notify.NewDispatcher(st, manager, testLogger())

	services := &Services{
		Invitations: service.NewInvitationService(st, conversations, dispatcher, users, testLogger(), service.InvitationConfig{
			StorageTimeout: 5 * time.Second,
		}),
		Properties:    service.NewPropertyService(st, testLogger(), time.Second),
		Conversations: conversations,
		Notifications: service.NewNotificationService(st, testLogger(), time.Second),
		Users:         users,
	}

	s := NewServer(services, st, tokenService, manager, opts, testLogger())
	t.Cleanup(s.Close)

	ts := &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.API()),
		store:   st,
		tokens:  make(map[string]string),
		manager: manager,
	}

	for _, u := range []*domain.User{
		{ID: testLandlordID, DisplayName: "Lena Landlord", Email: "lena@example.com", Role: domain.RoleLandlord},
		{ID: testTenantID, DisplayName: "Tom Tenant", Email: "tom@example.com", Role: domain.RoleTenant},
		{ID: testOtherID, DisplayName: "Olga", Email: "olga@example.com", Role: domain.RoleTenant},
		{ID: testAdminID, DisplayName: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin},
	} {
		u.CreatedAt = time.Now()
		require.NoError(t, st.CreateUser(context.Background(), u))

		token, err := tokenService.GenerateAccessToken(u)
		require.NoError(t, err)
		ts.tokens[u.ID] = token
	}

	return ts
}

func (ts *testServer) auth(userID string) string {
	return "Authorization: Bearer " + ts.tokens[userID]
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	require.Equal(t, EnvelopeVersion, env.Version)
	return env
}

func (ts *testServer) createProperty(t *testing.T, title string) *domain.Property {
	t.Helper()
	resp := ts.api.Post("/api/v1/properties", ts.auth(testLandlordID), map[string]any{
		"title":   title,
		"address": "12 Harbour Road",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[*domain.Property](t, resp.Body.Bytes()).Data
}

func (ts *testServer) invite(t *testing.T, propertyID, tenantID string) *service.CreateInvitationResult {
	t.Helper()
	resp := ts.api.Post("/api/v1/invitations", ts.auth(testLandlordID), map[string]any{
		"propertyId": propertyID,
		"tenantId":   tenantID,
		"message":    "Welcome aboard",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[*service.CreateInvitationResult](t, resp.Body.Bytes()).Data
}
