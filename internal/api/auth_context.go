package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the authenticated user ID.
const userIDKey ctxKey = "userID"

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return userID, nil
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// userIDFromContext returns the authenticated user ID or "".
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authMiddleware returns a middleware that validates Bearer tokens and stores user ID in context.
// If no token is present or invalid, continues without user in context.
// Handlers use GetUserID to check authentication.
func authMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				// Invalid token - continue without user (handler will reject if auth required)
				next.ServeHTTP(w, r)
				return
			}

			ctx := setUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser returns the authenticated user from context, fetching it from the directory.
// Returns 401 if not authenticated or the user no longer exists.
func (s *Server) RequireUser(ctx context.Context) (*domain.User, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, huma.Error401Unauthorized("User not found")
		}
		return nil, err
	}

	return user, nil
}

// RequireAdmin validates the user is authenticated and has admin role.
// Returns the user ID if successful, error otherwise.
func (s *Server) RequireAdmin(ctx context.Context) (string, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return "", err
	}

	if !user.IsAdmin() {
		return "", domainerrors.Forbidden("Admin access required")
	}

	return user.ID, nil
}

// RequireLandlord validates the user may own properties.
func (s *Server) RequireLandlord(ctx context.Context) (*domain.User, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if user.Role != domain.RoleLandlord && !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Landlord role required")
	}

	return user, nil
}

// authenticateStream resolves the user behind an event stream request.
// Browsers cannot set headers on EventSource, so the token may also be passed
// as the access_token query parameter.
func (s *Server) authenticateStream(r *http.Request) (string, error) {
	if userID := userIDFromContext(r.Context()); userID != "" {
		return userID, nil
	}

	token := r.URL.Query().Get("access_token")
	if token == "" {
		return "", domainerrors.Unauthorized("missing bearer token")
	}

	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return "", domainerrors.Unauthorized("invalid bearer token").WithCause(err)
	}
	return claims.UserID, nil
}
