package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/api"
	"github.com/graaaaa/reconcile/internal/app"
	"github.com/graaaaa/reconcile/internal/config"
	"github.com/graaaaa/reconcile/internal/store"
	"github.com/graaaaa/reconcile/internal/version"
)

const shutdownTimeout = 5 * time.Second

var (
	servePort        int
	serveCORSOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only review API over saved runs",
	Long: `Serve saved runs, their analyses, and staging statistics over HTTP.

The server binds to 127.0.0.1 unless lan_enabled is set, in which case it
binds to all interfaces and requires HTTP Basic Auth. Credentials are
generated on first use and written to a file in the data directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := current
		if cmd.Flags().Changed("port") {
			e.cfg.Port = servePort
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return runServe(ctx, e, serveCORSOrigins)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
}

// ensureCredentials generates Basic Auth credentials for LAN mode. New
// credentials are not saved over a secrets file that failed to load.
func ensureCredentials(e *env) error {
	updated, generated, err := config.EnsureLanAuth(&e.secrets, e.cfg.LanEnabled)
	if err != nil {
		return fmt.Errorf("ensure LAN auth: %w", err)
	}
	if !updated {
		return nil
	}
	if e.secretsStatus == config.SecretsFallback {
		e.logger.Warn("secrets file has errors; generated credentials are not saved",
			"path", e.paths.Secrets())
		return nil
	}

	if err := e.paths.Ensure(); err != nil {
		return err
	}
	if err := config.SaveSecretsTo(e.secrets, e.paths.Secrets()); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}
	if generated == "" {
		return nil
	}

	path, err := config.WritePasswordFile(e.paths, e.secrets.BasicAuthUsername, generated)
	if err != nil {
		e.logger.Warn("failed to write password file", "error", err)
		fmt.Fprintf(e.out, "%s username=%s password=%s\n",
			color.YellowString("Generated Basic Auth credentials:"), e.secrets.BasicAuthUsername, generated)
		return nil
	}
	fmt.Fprintf(e.out, "%s %s\n", color.YellowString("Basic Auth credentials written to"), path)
	fmt.Fprintln(e.out, "Delete this file after saving the credentials.")
	return nil
}

// newServer wires the review API over db.
func newServer(e *env, db *store.Store, corsOrigins []string) (*api.Server, func()) {
	host := "127.0.0.1"
	if e.cfg.LanEnabled {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, e.cfg.Port)

	opts := []api.ServerOption{
		api.WithRunsUsecase(&app.RunsService{Store: db}),
		api.WithAnalysesUsecase(&app.AnalysesService{Store: db}),
		api.WithStatsUsecase(app.NewStatsService(db)),
	}
	if len(corsOrigins) > 0 {
		opts = append(opts, api.WithCORS(api.CORSConfig{AllowedOrigins: corsOrigins}))
	}

	cleanup := func() {}
	if e.cfg.LanEnabled {
		rl := api.NewRateLimiter(api.DefaultRateLimiterConfig())
		afl := api.NewAuthFailureLimiter(api.DefaultAuthFailureLimiterConfig())
		opts = append(opts,
			api.WithRateLimiter(rl),
			api.WithBasicAuth(e.secrets.BasicAuthUsername, e.secrets.BasicAuthPassword.Value(), afl),
		)
		cleanup = rl.Stop
		e.logger.Info("basic auth enabled for LAN mode")
	}

	health := app.HealthService{Version: version.String(), DB: db}
	return api.NewServer(addr, health, opts...), cleanup
}

func runServe(ctx context.Context, e *env, corsOrigins []string) error {
	if err := ensureCredentials(e); err != nil {
		return err
	}

	// Readers do not take the data directory lock; WAL lets ingest and
	// analyze write while the API is up.
	db, closeDB, err := e.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer closeDB()

	server, cleanup := newServer(e, db, corsOrigins)
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("starting review API", "version", version.String(), "addr", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		e.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	e.logger.Info("server stopped")
	return nil
}
