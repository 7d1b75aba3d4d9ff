package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/scheduler"
	"github.com/me/ecswait/internal/server"
	"github.com/me/ecswait/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ecswait server",
		Long:  "Serve the REST API and drive submitted waits until their clusters drain.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := resolveDBPath(cfg.DBPath)
			if err != nil {
				return err
			}

			// Open store and run migrations.
			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("database ready", "path", dbPath)
			if len(cfg.TemplateEnv) > 0 {
				logger.Info("template env exposed", "names", cfg.TemplateEnv)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l, err := newTaskLister(ctx, cfg.AWS, logger)
			if err != nil {
				return err
			}

			sched := scheduler.NewLoop(st, l, scheduler.Config{TickInterval: cfg.TickInterval}, logger)
			srv := server.New(cfg, st, sched, l, logger, server.WithTemplateEnv(templateEnv(cfg.TemplateEnv)))

			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start scheduler in background.
			srv.StartScheduler(ctx)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				stop()
				return fmt.Errorf("server failed: %w", err)
			}
			logger.Info("shutting down")

			// Stop scheduler before HTTP server.
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler stop error", "error", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.ecswait/ecswait.db)")
	cmd.Flags().DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "How often the scheduler looks for due waits")
	cmd.Flags().StringArrayVar(&cfg.TemplateEnv, "template-env", nil, "Environment variable templates may read as env.NAME (repeatable)")
	cmd.Flags().DurationVar(&cfg.TemplateTimeout, "template-timeout", cfg.TemplateTimeout, "Evaluation limit for one templated field")
	registerAWSFlags(cmd, &cfg.AWS)
	return cmd
}

// resolveDBPath returns path, or ~/.ecswait/ecswait.db when it is empty.
func resolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ecswait")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ecswait.db"), nil
}
