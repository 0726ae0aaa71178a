// Package main provides propctl, the operator tool for a Rentwise data directory.
//
// Usage:
//
//	propctl --data-path ~/.rentwise reconcile
//	propctl outbox drain --limit 100
//	propctl import-legacy --properties properties.jsonl --invitations invitations.jsonl
//	propctl user add --email lee@example.com --role landlord --name "Lee Landlord"
//	propctl token user_abc123
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:           "propctl",
		Short:         "Rentwise maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dataPath, "data-path", "", "Directory holding the database and auth key")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to .env file")

	rootCmd.AddCommand(
		reconcileCmd(&opts),
		outboxCmd(&opts),
		importLegacyCmd(&opts),
		userCmd(&opts),
		tokenCmd(&opts),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
