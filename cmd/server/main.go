package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"certificatePortal/internal/app"
	"certificatePortal/internal/config"
	"certificatePortal/internal/db"
	"certificatePortal/internal/logging"
	"certificatePortal/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configFile string
	dev        bool
}

// newRootCmd creates the certportal command tree. Running it without a
// subcommand serves the portal.
func newRootCmd() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:           "certportal",
		Short:         "Certificate portal: participant lookup and certificate printing",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}
	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (yaml, json or toml); environment variables override it")
	cmd.PersistentFlags().BoolVar(&g.dev, "dev", false, "use a development JWT secret when none is configured")

	cmd.AddCommand(newServeCmd(&g), newMigrateCmd(&g), newIngestCmd(&g), newCreateUserCmd(&g), newListUsersCmd(&g), newListRecordsCmd(&g))
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *g)
		},
	}
}

func newMigrateCmd(g *globalFlags) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (or roll back the last one with --down)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := db.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer d.Close()
			if down {
				if err := db.RollbackLast(ctx, d); err != nil {
					return err
				}
			}
			v, err := db.Version(ctx, d)
			if err != nil {
				return err
			}
			log.Info(ctx, "database migrated", "path", cfg.Database.Path, "version", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}

func newIngestCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Replace all records with the contents of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *g, func(ctx context.Context, a *app.App) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				res, err := a.Pipeline.Ingest(ctx, f, filepath.Base(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d records\n", res.RecordCount)
				return nil
			})
		},
	}
}

func newCreateUserCmd(g *globalFlags) *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register an identity without going through the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *g, func(ctx context.Context, a *app.App) error {
				u, err := a.Gateway.Register(ctx, username, password, models.Role(role))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleParticipant), "admin or participant")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newListUsersCmd(g *globalFlags) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "Print registered identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *g, func(ctx context.Context, a *app.App) error {
				users, err := a.Users.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "USERNAME\tROLE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newListRecordsCmd(g *globalFlags) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list-records",
		Short: "Print the current record set in upload order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *g, func(ctx context.Context, a *app.App) error {
				gen, err := a.Records.Generation(ctx)
				if err != nil {
					return err
				}
				recs, err := a.Records.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "generation %s\n", gen)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCERTIFICATE\tCOLLEGE\tLINK")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Certificate, r.College, r.Link)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func loadConfig(g globalFlags) (*config.Config, error) {
	switch {
	case g.configFile != "":
		return config.LoadFile(g.configFile, g.dev)
	case g.dev:
		return config.LoadWithDefaults()
	default:
		return config.Load()
	}
}

func setup(g globalFlags) (*config.Config, logging.Logger, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func withApp(ctx context.Context, g globalFlags, fn func(context.Context, *app.App) error) error {
	cfg, log, err := setup(g)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runServe(ctx context.Context, g globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup(g)
	if err != nil {
		return err
	}
	log.Info(ctx, "configuration loaded", "config", cfg.String())

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info(context.Background(), "shut down")
	return nil
}
