// aiweb - LLM gateway: chat completion, streaming and retrieval-augmented
// answers over HTTP and MCP, plus knowledge-store administration.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/aiweb/internal/infra/config"
	"github.com/matiasleandrokruk/aiweb/internal/infra/logger"
	"github.com/matiasleandrokruk/aiweb/internal/infra/sqlite"
	"github.com/matiasleandrokruk/aiweb/internal/server"
	"github.com/matiasleandrokruk/aiweb/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// flagError marks command-line parse failures so run can exit with 2.
type flagError struct{ err error }

func (e flagError) Error() string { return e.err.Error() }
func (e flagError) Unwrap() error { return e.err }

func run(args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(out, "error:", err) //nolint:errcheck
		var fe flagError
		if errors.As(err, &fe) {
			return 2
		}
		return 1
	}
	return 0
}

// newRootCmd builds a fresh command tree so tests never share flag state.
func newRootCmd(out io.Writer) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "aiweb",
		Short:         "aiweb - LLM gateway with retrieval-augmented answers",
		Long:          "aiweb serves chat completion, streaming and retrieval-augmented answers backed by OpenAI or Azure OpenAI, and administers knowledge stores.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Default: print version
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetVersionTemplate(version.String() + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return flagError{err: err} })
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides "+config.EnvKeyConfigFile+")")

	loadConfig := func() (config.Config, error) {
		if cfgFile != "" {
			return config.LoadFile(cfgFile)
		}
		return config.LoadFromEnv()
	}

	root.AddCommand(newServeCmd(loadConfig), newMigrateCmd(loadConfig), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}

func newServeCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.HTTPPort = port
			}
			log := newLogger(cfg, cmd.ErrOrStderr())

			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			srv := server.NewServer(db, server.ConfigFrom(cfg), cfg, log)
			if cfg.SeedAdmin() {
				if err := srv.EnsureAdmin(cmd.Context(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
					db.Close() //nolint:errcheck
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides HTTP_PORT)")
	return cmd
}

func newMigrateCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := sqlite.Open(cfg.DatabasePath, sqliteOptions())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			if !statusOnly {
				if err := sqlite.MigrateUp(ctx, db); err != nil {
					return err
				}
			}
			return printMigrationStatus(ctx, db, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report applied and pending migrations")
	return cmd
}

func printMigrationStatus(ctx context.Context, db *sql.DB, out io.Writer) error {
	v, err := sqlite.MigrationVersion(ctx, db)
	if err != nil {
		return err
	}
	pending, err := sqlite.PendingMigrations(ctx, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d, %d pending\n", v, len(pending)) //nolint:errcheck
	for _, name := range pending {
		fmt.Fprintf(out, "  pending: %s\n", name) //nolint:errcheck
	}
	return nil
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sqlite.Open(cfg.DatabasePath, sqliteOptions())
	if err != nil {
		return nil, err
	}
	if err := sqlite.MigrateUp(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return db, nil
}

func sqliteOptions() sqlite.Options {
	opts := sqlite.DefaultOptions()
	opts.CreateDir = true
	return opts
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: w})
}
