package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tofu-suite/tofu/internal/adapters/notify"
	"github.com/tofu-suite/tofu/internal/infrastructure/config"
	"github.com/tofu-suite/tofu/internal/infrastructure/server"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	GitCommit = "development"
)

const shutdownTimeout = 10 * time.Second

// NewRootCommand assembles the tofu command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tofu",
		Short:         "Tofu data core",
		Long:          `Tofu keeps the project, process-design and personal-productivity data of the Tofu suite in one JSON document and serves it to the suite's tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewReportCommand())
	rootCmd.AddCommand(NewFoldersCommand())
	rootCmd.AddCommand(NewEquipmentCommand())
	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewBackupCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local Tofu API server",
		Long:  "Start the local JSON API over the document store with health checks and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration commands",
		Long:  "Upgrade the stored document to the current layout, or manage the SQL schema (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "document",
		Short: "Load, migrate and rewrite the stored document",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document migrated: %s\n", a.store.Location())
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, "up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, "down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	})

	return migrateCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Tofu version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Tofu %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	backups, err := a.backups(ctx)
	if err != nil {
		a.logger.Warnw("Backups disabled", "error", err)
		backups = nil
	}

	srv, err := server.New(a.cfg, server.Dependencies{
		Store:   a.store,
		Backups: backups,
		DB:      a.db,
		Metrics: a.metrics,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if a.redis != nil {
		relay := notify.NewRedisRelay(a.redis, a.cfg.Redis.Prefix+"changes", a.store.Bus(), a.logger)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warnw("Change relay stopped", "error", err)
			}
		}()
	}

	a.logger.Infow("Starting Tofu API server",
		"address", a.cfg.Server.GetAddr(),
		"environment", a.cfg.App.Environment,
		"driver", a.cfg.Storage.Driver,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.cfg.Server.GetAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warnw("Server shutdown failed", "error", err)
	}
	if err := a.store.Flush(shutdownCtx); err != nil {
		return fmt.Errorf("failed to flush document: %w", err)
	}
	return nil
}

func runMigration(cmd *cobra.Command, direction string) error {
	cfg, err := sqlConfig()
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}
	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var changed bool
	switch direction {
	case "up":
		changed, err = db.MigrateUp()
	case "down":
		changed, err = db.MigrateDown()
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
	}
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	cfg, err := sqlConfig()
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}
	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.MigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", status.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", status.Dirty)
	return nil
}

// sqlConfig loads configuration and requires a SQL storage driver.
func sqlConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Driver != config.DriverSQLite && cfg.Storage.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("storage driver %q has no SQL schema", cfg.Storage.Driver)
	}
	return cfg, nil
}
