package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/tracing"
)

// TracingHandle flushes the tracer provider on shutdown.
type TracingHandle struct {
	shutdown func(context.Context) error
}

// Shutdown implements do.Shutdownable.
func (h *TracingHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.shutdown(ctx)
}

// ProvideTracing installs the global tracer provider.
func ProvideTracing(i do.Injector) (*TracingHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	shutdown, err := tracing.Setup(context.Background(), cfg.Tracing, tracing.ServiceName)
	if err != nil {
		return nil, err
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint != "" {
		log.Info("Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}
	return &TracingHandle{shutdown: shutdown}, nil
}
