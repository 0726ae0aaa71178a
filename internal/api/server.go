// Package api provides the HTTP API server and handlers for the rentwise server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/ratelimit"
	"github.com/rentwise/rentwise-server/internal/service"
	"github.com/rentwise/rentwise-server/internal/sse"
)

// Services groups the application services the handlers call.
type Services struct {
	Invitations   *service.InvitationService
	Properties    *service.PropertyService
	Conversations *service.ConversationService
	Notifications *service.NotificationService
	Users         *service.UserDirectory
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds HTTP-level settings.
type Options struct {
	CORSOrigins []string
	// WriteRatePerMinute limits mutating requests per caller. Zero disables limiting.
	WriteRatePerMinute int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	db           Pinger
	tokens       *auth.TokenService
	sseManager   *sse.Manager
	sseHandler   *sse.Handler
	writeLimiter *ratelimit.KeyedRateLimiter
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, db Pinger, tokens *auth.TokenService, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services:   services,
		db:         db,
		tokens:     tokens,
		sseManager: sseManager,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.WriteRatePerMinute > 0 {
		s.writeLimiter = ratelimit.PerMinute(opts.WriteRatePerMinute)
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, s.authenticateStream, logger)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Rentwise API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.writeLimiter != nil {
		s.writeLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(authMiddleware(s.tokens))
	if s.writeLimiter != nil {
		s.router.Use(writeRateLimit(s.writeLimiter, s.logger))
	}
}

// setupRoutes registers every operation.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerPropertyRoutes()
	s.registerInvitationRoutes()
	s.registerConversationRoutes()
	s.registerNotificationRoutes()
	s.registerAdminRoutes()

	// The event stream is plain net/http; huma does not model long-lived responses.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/notifications/stream", s.sseHandler.ServeHTTP)
	}
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
