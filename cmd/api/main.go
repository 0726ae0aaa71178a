// Package main provides the entry point for the Rentwise server application.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/di"
	"github.com/rentwise/rentwise-server/internal/logger"
)

func main() {
	injector := di.NewContainer(os.Args[1:])

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	if err := di.Start(injector); err != nil {
		log.Error("Failed to start server", "error", err)
		_ = di.Shutdown(injector)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// The container shuts down in reverse dependency order: server, workers,
	// services, then the store.
	if err := di.Shutdown(injector); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Server stopped")
}
