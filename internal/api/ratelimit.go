package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/ratelimit"
)

// writeRateLimit limits mutating requests per authenticated user, falling back
// to the client IP for anonymous callers. Reads are never limited.
// Returns 429 Too Many Requests when limit is exceeded.
func writeRateLimit(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWriteMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + getClientIP(r)
			if userID := userIDFromContext(r.Context()); userID != "" {
				key = "user:" + userID
			}

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
				)
				writeRateLimited(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// writeRateLimited writes the 429 envelope outside of huma, which never sees
// the rejected request.
func writeRateLimited(w http.ResponseWriter) {
	const msg = "Too many requests. Please try again later."
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	w.WriteHeader(http.StatusTooManyRequests)
	//nolint:errcheck // Nothing useful to do if the client went away
	_ = json.NewEncoder(w).Encode(APIErrorEnvelope{
		Version:   EnvelopeVersion,
		Success:   false,
		Error:     msg,
		Code:      string(domainerrors.CodeRateLimited),
		Message:   msg,
		Retriable: true,
	})
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For (may contain multiple IPs, first is client).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
