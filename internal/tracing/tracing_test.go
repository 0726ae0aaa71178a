package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/tracing"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := tracing.Setup(context.Background(), config.TracingConfig{Enabled: true}, "test-service")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	cfg := config.TracingConfig{Enabled: false, Endpoint: "http://localhost:4318"}
	shutdown, err := tracing.Setup(context.Background(), cfg, "test-service")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx), "noop shutdown ignores a cancelled context")
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	cfg := config.TracingConfig{Enabled: true, Endpoint: "http://192.0.2.1:4318"}
	shutdown, err := tracing.Setup(context.Background(), cfg, "test-service")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
