package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/framecut/timeline/internal/api"
	"github.com/framecut/timeline/internal/config"
	"github.com/framecut/timeline/internal/db"
	"github.com/framecut/timeline/internal/gateway"
	"github.com/framecut/timeline/internal/logging"
	"github.com/framecut/timeline/internal/store"
)

type ServeOptions struct {
	*RootOptions
	Host   string
	Repair bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timeline server",
		Long: `Run the timeline server: the write gateway behind the HTTP API, plus the
revision feed.

With --repair, scene orders of every project are renumbered to 0..N-1
before the server starts accepting writes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "listen address")
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "normalize scene orders before serving")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	startTime := time.Now()
	cfg := opts.cfg

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	if opts.Verbose {
		logger = logging.NewLogger("debug")
	}
	logger.Info("starting timeline server", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	s := store.New(database.Conn())

	authToken, err := ensureAuthToken(ctx, s, cfg.AuthToken())
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	hub := api.NewHub(logger)
	gw := gateway.New(s, hub, logger)

	if opts.Repair {
		if err := repairAll(ctx, s, gw, logger); err != nil {
			return err
		}
	}

	server := api.NewServer(api.ServerConfig{
		Host:        opts.Host,
		Port:        cfg.Port(),
		Store:       s,
		Gateway:     gw,
		Feed:        hub,
		RequireAuth: true,
		Logger:      logger,
		StartTime:   startTime,
	})

	logger.Info("auth enabled", "token", logging.SanitizeToken(authToken), "addr", server.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// ensureAuthToken stores the configured token in the config table, or
// keeps the existing one, or mints a new one on first start.
func ensureAuthToken(ctx context.Context, s *store.SQLiteStore, configured string) (string, error) {
	if configured != "" {
		return configured, s.SetConfig(ctx, api.AuthTokenKey, configured)
	}

	existing, err := s.GetConfig(ctx, api.AuthTokenKey)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := s.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}

func repairAll(ctx context.Context, s *store.SQLiteStore, gw *gateway.Gateway, logger *slog.Logger) error {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		n, err := gw.RepairOrder(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("repair project %s: %w", p.ID, err)
		}
		if n > 0 {
			logger.Info("scene order repaired", "project_id", p.ID, "scenes_renumbered", n)
		}
	}
	return nil
}
