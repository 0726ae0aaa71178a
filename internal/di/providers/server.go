package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/api"
	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Invitations:   do.MustInvoke[*service.InvitationService](i),
		Properties:    do.MustInvoke[*service.PropertyService](i),
		Conversations: do.MustInvoke[*service.ConversationService](i),
		Notifications: do.MustInvoke[*service.NotificationService](i),
		Users:         do.MustInvoke[*service.UserDirectory](i),
	}

	apiServer := api.NewServer(services, storeHandle.Store, tokens, sseHandle.Manager, api.Options{
		CORSOrigins:        cfg.Server.CORSOrigins,
		WriteRatePerMinute: cfg.Server.WriteRatePerMinute,
	}, log.Component("api"))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", fmt.Errorf("listen on %s: %w", httpServer.Addr, err))
		}
	}()

	return &HTTPServerHandle{Server: httpServer, api: apiServer}, nil
}
