package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	connector "github.com/sonax/hubspot-connector"
	"github.com/sonax/hubspot-connector/config"
	"github.com/sonax/hubspot-connector/instrumentation"
	"github.com/sonax/hubspot-connector/providers/hubspot"
	"github.com/sonax/hubspot-connector/security"
	"github.com/sonax/hubspot-connector/server"
	"github.com/sonax/hubspot-connector/storage/postgres"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	logger.Info("starting hubspot connector", "env", cfg.Env, "addr", cfg.HTTP.Addr())

	var encryptor *security.Encryptor
	if cfg.Security.EncryptionKey != "" {
		key, err := security.KeyFromBase64(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Error("invalid encryption key", "error", err)
			os.Exit(1)
		}
		encryptor, err = security.NewEncryptor(key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
		logger.Info("token encryption at rest enabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := postgres.New(ctx, cfg.DB.DatabaseURL, encryptor)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider, err := hubspot.NewProvider(&hubspot.Config{
		ClientID:     cfg.HubSpot.ClientID,
		ClientSecret: cfg.HubSpot.ClientSecret,
		RedirectURL:  cfg.HubSpot.RedirectURL,
		AuthURL:      cfg.HubSpot.AuthURL,
		TokenURL:     cfg.HubSpot.TokenURL,
		APIBaseURL:   cfg.HubSpot.APIBaseURL,
		HTTPClient:   &http.Client{Timeout: cfg.HubSpot.Timeout},
	})
	if err != nil {
		logger.Error("failed to create hubspot provider", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(provider, store, &server.Config{Timezone: cfg.Timezone}, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: "hubspot-connector",
		Enabled:     cfg.Env == envProd,
	})
	if err != nil {
		logger.Error("failed to create instrumentation", "error", err)
		os.Exit(1)
	}
	srv.SetInstrumentation(inst)

	var limiter *security.RateLimiter
	if cfg.RateLimit.Rate > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger)
		defer limiter.Stop()
	}

	handler := connector.NewHandler(srv, logger, limiter)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := inst.Shutdown(drainCtx); err != nil {
		logger.Error("instrumentation shutdown failed", "error", err)
	}

	logger.Info("stopped")
}

// setupLogger builds the process logger: human-readable text at debug level
// locally, JSON at info level otherwise.
func setupLogger(env string) *slog.Logger {
	if env == envLocal {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
