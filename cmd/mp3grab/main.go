package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/italolelis/mp3grab/internal/config"
	"github.com/italolelis/mp3grab/internal/extractor"
	"github.com/italolelis/mp3grab/internal/http/rest"
	"github.com/italolelis/mp3grab/internal/logctx"
	"github.com/italolelis/mp3grab/internal/notifier"
	"github.com/italolelis/mp3grab/internal/telemetry"
	"github.com/italolelis/mp3grab/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logctx.NewContextHandler(handler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("mp3grab starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		// The parent context is already cancelled at this point.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, tel, cfg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(ctx, "Initializing API support", "host", cfg.Web.BindAddress, "static", cfg.StaticEnabled())

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.InfoContext(ctx, "start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	// =========================================================================
	// Start Cleanup
	g.Go(func() error {
		runCleanup(ctx, tel, cfg)

		return nil
	})

	return g.Wait()
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	ext := extractor.NewInstrumentedExtractor(extractor.NewYTDLP(cfg.YTDLPPath), tel, "yt-dlp")

	dh := rest.NewDownloadHandler(ext, cfg.CookiesPath, cfg.WorkspaceDir, buildNotifier(cfg), tel)

	var static http.Handler
	if cfg.StaticEnabled() {
		static = rest.NewStaticHandler(cfg.StaticDir, cfg.StaticIndex)
	}

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      rest.NewRouter(dh, static, tel, cfg.CORS.AllowedOrigins),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.DiscordWebhookURL == "" {
		return nil
	}

	return notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)
}

// runCleanup sweeps workspaces left behind by a previous process once at startup and
// then on every tick until ctx is done.
func runCleanup(ctx context.Context, tel *telemetry.Telemetry, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	sweep := func() {
		removed, err := workspace.DeleteStale(ctx, cfg.WorkspaceDir, cfg.WorkspaceMaxAge)
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete stale workspaces", "dir", cfg.WorkspaceDir, "err", err)
			tel.RecordSystemError("cleanup", "sweep_failed")

			return
		}

		tel.RecordWorkspacesSwept(removed)
	}

	sweep()

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "cleanup goroutine shutting down.")

			return
		case <-ticker.C:
			sweep()
		}
	}
}
