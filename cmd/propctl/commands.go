package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/rentwise/rentwise-server/internal/auth"
	"github.com/rentwise/rentwise-server/internal/di"
	"github.com/rentwise/rentwise-server/internal/di/providers"
	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/legacy"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/service"
)

type rootOptions struct {
	dataPath string
	envFile  string
}

// configArgs translates the persistent flags into server config flags.
func (o *rootOptions) configArgs() []string {
	var args []string
	if o.dataPath != "" {
		args = append(args, "-data-path="+o.dataPath)
	}
	if o.envFile != "" {
		args = append(args, "-env-file="+o.envFile)
	}
	return args
}

// withContainer bootstraps the core services, runs fn and shuts everything down.
func withContainer(opts *rootOptions, fn func(injector do.Injector) error) error {
	injector := di.NewContainer(opts.configArgs())
	if err := di.Bootstrap(injector); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	runErr := fn(injector)
	if err := di.Shutdown(injector); err != nil && runErr == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair tenant assignments and property statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(opts, func(i do.Injector) error {
				invitations := do.MustInvoke[*service.InvitationService](i)
				report, err := invitations.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func outboxCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the assignment outbox",
	}

	var limit int
	drain := &cobra.Command{
		Use:   "drain",
		Short: "Apply pending tenant assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return errors.New("--limit cannot be negative")
			}
			return withContainer(opts, func(i do.Injector) error {
				invitations := do.MustInvoke[*service.InvitationService](i)
				report, err := invitations.DrainOutbox(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	drain.Flags().IntVar(&limit, "limit", 0, "Maximum entries to apply (0 drains everything)")

	cmd.AddCommand(drain)
	return cmd
}

func importLegacyCmd(opts *rootOptions) *cobra.Command {
	var propertiesPath, invitationsPath string

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import newline-delimited Extended JSON exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if propertiesPath == "" && invitationsPath == "" {
				return errors.New("at least one of --properties or --invitations is required")
			}

			var src legacy.Source
			for _, f := range []struct {
				path string
				dst  *io.Reader
			}{
				{propertiesPath, &src.Properties},
				{invitationsPath, &src.Invitations},
			} {
				if f.path == "" {
					continue
				}
				file, err := os.Open(f.path)
				if err != nil {
					return fmt.Errorf("open export: %w", err)
				}
				defer file.Close()
				*f.dst = file
			}

			return withContainer(opts, func(i do.Injector) error {
				storeHandle := do.MustInvoke[*providers.StoreHandle](i)
				invitations := do.MustInvoke[*service.InvitationService](i)
				log := do.MustInvoke[*logger.Logger](i)

				importer := legacy.NewImporter(storeHandle.Store, invitations, log.Component("legacy"))
				res, err := importer.Import(cmd.Context(), src)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&propertiesPath, "properties", "", "Properties export file")
	cmd.Flags().StringVar(&invitationsPath, "invitations", "", "Invitations export file")
	return cmd
}

func userCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}

	var req service.ProvisionUserRequest
	var role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a landlord, tenant or admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Role = domain.Role(role)
			return withContainer(opts, func(i do.Injector) error {
				users := do.MustInvoke[*service.UserDirectory](i)
				user, err := users.Provision(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
	add.Flags().StringVar(&req.Email, "email", "", "Email address")
	add.Flags().StringVar(&req.DisplayName, "name", "", "Display name")
	add.Flags().StringVar(&role, "role", string(domain.RoleTenant), "Role: landlord, tenant or admin")
	_ = add.MarkFlagRequired("email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(opts, func(i do.Injector) error {
				users, err := do.MustInvoke[*service.UserDirectory](i).ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), users)
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func tokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(opts, func(i do.Injector) error {
				user, err := do.MustInvoke[*service.UserDirectory](i).GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				token, err := do.MustInvoke[*auth.TokenService](i).GenerateAccessToken(user)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}
