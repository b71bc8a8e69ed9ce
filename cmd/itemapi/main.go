package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erazemk/itemapi/internal/api"
	"github.com/erazemk/itemapi/internal/config"
	"github.com/erazemk/itemapi/internal/db"
	"github.com/erazemk/itemapi/internal/store"
)

// startupTimeout bounds the initial database ping.
const startupTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "itemapi",
		Short:         "CRUD HTTP service for items",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Bind(v, cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.String(config.KeyConfigFile, "", "config file (yaml, json or toml)")
	pf.String(config.KeyDatabaseURL, config.DefaultDatabaseURL, "SQLite path or postgres:// url (env DATABASE_URL)")
	pf.String(config.KeyLogFile, "", "also write logs to this file (env LOG_FILE)")
	pf.String(config.KeyLogLevel, config.DefaultLogLevel, "debug, info, warn or error (env LOG_LEVEL)")
	pf.Int(config.KeyMaxOpenConns, config.DefaultMaxOpenConns, "PostgreSQL connection pool size (env MAX_OPEN_CONNS)")

	root.AddCommand(newServeCmd(v), newMigrateCmd(v))
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer closeLog()
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.Int(config.KeyPort, config.DefaultPort, "listen port (env PORT)")
	f.Bool(config.KeyAutoMigrate, false, "apply pending migrations before serving (env AUTO_MIGRATE)")
	f.Duration(config.KeyShutdownTimeout, config.DefaultShutdownTimeout, "graceful shutdown deadline (env SHUTDOWN_TIMEOUT)")
	return cmd
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer closeLog()

			database, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			applied, err := db.Migrate(cmd.Context(), database)
			for _, m := range applied {
				slog.Info("migration applied", "version", m.Version, "name", m.Name)
			}
			if err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			if len(applied) == 0 {
				slog.Info("schema up to date")
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer closeLog()

			database, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			statuses, err := db.Status(cmd.Context(), database)
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	})

	return cmd
}

// loadConfig resolves the configuration and installs the logger.
func loadConfig(v *viper.Viper) (config.Config, func(), error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}

	closeLog, err := setupLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, closeLog, nil
}

// openDatabase opens the configured database and checks it is reachable.
func openDatabase(ctx context.Context, cfg config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DatabaseURL, db.Options{MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := database.Verify(ctx, startupTimeout); err != nil {
		database.Close()
		return nil, err
	}

	slog.Info("database ready", "dialect", database.Dialect)
	return database, nil
}

// ensureMigrated refuses to continue on a stale schema unless autoMigrate is set.
func ensureMigrated(ctx context.Context, database *db.DB, autoMigrate bool) error {
	if autoMigrate {
		applied, err := db.Migrate(ctx, database)
		if err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		for _, m := range applied {
			slog.Info("migration applied", "version", m.Version, "name", m.Name)
		}
		return nil
	}

	pending, err := db.Pending(ctx, database)
	if err != nil {
		return fmt.Errorf("checking migrations: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("database schema is %d migration(s) behind; run `itemapi migrate` or pass --auto-migrate", len(pending))
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := ensureMigrated(ctx, database, cfg.AutoMigrate); err != nil {
		return err
	}

	items := store.NewItemStore(database)
	handler := api.LoggingMiddleware(api.RecoverMiddleware(api.NewRouter(items, database)))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	for _, st := range statuses {
		state := "pending"
		if st.Applied {
			state = "applied"
			if st.AppliedAt != nil {
				state += " " + st.AppliedAt.UTC().Format(time.RFC3339)
			}
		}
		fmt.Fprintf(out, "%3d  %-24s %s\n", st.Version, st.Name, state)
	}
}
