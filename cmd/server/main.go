package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/plant-identifier/internal/api"
	"github.com/shehryarbajwa/plant-identifier/internal/config"
	"github.com/shehryarbajwa/plant-identifier/internal/credential"
	"github.com/shehryarbajwa/plant-identifier/internal/identify"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "plant identifier server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting Plant Identifier server...")

	// The server holds the key; it is read from the process environment only
	provider := credential.NewProvider(credential.Options{
		Strategy: config.StrategyServer,
		EnvToken: cfg.GeminiAPIKey,
		Logger:   logger,
	})
	if _, err := provider.Acquire(context.Background()); err != nil {
		logger.Warn("GEMINI_API_KEY is not set; identification requests will fail until it is")
	}

	backend := identify.NewGeminiBackend(identify.GeminiConfig{
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Token:   provider.Token,
	})
	client := identify.NewClient(backend, cfg.RequestTimeout, logger)
	logger.Info("Gemini backend initialized", zap.String("model", cfg.GeminiModel))

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerHour, cfg.RateLimitBurst)
	logger.Info("Rate limiter initialized",
		zap.Int("per_hour", cfg.RateLimitPerHour),
		zap.Int("burst", cfg.RateLimitBurst))

	handler := api.NewHandler(backend, client, cfg.MaxConcurrentUpstream, logger)
	keys := api.NewKeyHandler(provider.Token)

	router := api.SetupRoutes(handler, keys, rateLimiter, api.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		StaticDir:     cfg.StaticDir,
		ExposeAPIKey:  cfg.ExposeAPIKey,
		TrustProxy:    cfg.TrustProxy,
		Logger:        logger,
	})
	if cfg.ExposeAPIKey {
		logger.Warn("Credential-issuing endpoint /api/config is enabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("Server stopped cleanly")
		return nil
	})

	return g.Wait()
}
