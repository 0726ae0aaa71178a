// Package di provides dependency injection configuration for the Rentwise server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/di/providers"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/notify"
	"github.com/rentwise/rentwise-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, providers.ConfigArgs(args))

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideTracing)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideUserDirectory)
	do.Provide(injector, providers.ProvidePropertyService)
	do.Provide(injector, providers.ProvideConversationService)
	do.Provide(injector, providers.ProvideNotificationService)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideInvitationService)

	// Workers
	do.Provide(injector, providers.ProvideOutboxJob)
	do.Provide(injector, providers.ProvideReconcileJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the core services without starting workers or the
// HTTP server. Command-line tools use it directly.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	if _, err := do.Invoke[*providers.TracingHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*service.UserDirectory](injector)
	_ = do.MustInvoke[*service.PropertyService](injector)
	_ = do.MustInvoke[*service.ConversationService](injector)
	_ = do.MustInvoke[*service.NotificationService](injector)
	_ = do.MustInvoke[*notify.Dispatcher](injector)
	_ = do.MustInvoke[*service.InvitationService](injector)
	return nil
}

// Start runs the background workers and the HTTP server.
func Start(injector *do.RootScope) error {
	if _, err := do.Invoke[*providers.OutboxJob](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ReconcileJob](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}

// Shutdown stops every initialized service in reverse dependency order.
// It returns nil when all services stopped cleanly.
func Shutdown(injector *do.RootScope) error {
	report := injector.Shutdown()
	if report == nil || report.Succeed {
		return nil
	}
	return report
}
