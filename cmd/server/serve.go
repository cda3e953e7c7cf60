package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tipjar/internal/config"
	"tipjar/internal/eip712"
	"tipjar/internal/logging"
	"tipjar/internal/ratelimit"
	"tipjar/internal/relay"
	"tipjar/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func loadConfig() (*config.AppConfig, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logging.Nop(), fmt.Errorf("config error: %w", err)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	return cfg, logging.NewLoggerFromConfig(logCfg), nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("environment validation failed")
		return err
	}

	backend, err := buildChain(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var store ratelimit.Store = ratelimit.NewMemoryStore(cfg.RateLimit.Window)
	if cfg.RateLimit.RedisURL != "" {
		redisStore, err := ratelimit.NewRedisStoreFromURL(cfg.RateLimit.RedisURL, cfg.RateLimit.Window)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
	}

	metrics := server.NewMetrics()
	validator := relay.NewValidator(relay.AmountPolicy{
		Min:      cfg.Tips.MinAmount,
		Max:      cfg.Tips.MaxAmount,
		Decimals: relay.DefaultAmountPolicy().Decimals,
	})
	svc, err := relay.NewService(relay.Deps{
		Validator: validator,
		Limiter:   ratelimit.NewLimiter(store, cfg.RateLimit.PerIP, cfg.RateLimit.PerFan, logger),
		Verifier:  eip712.NewVerifier(backend.domain),
		Client:    backend.client,
		Watcher:   relay.NewWatcher(backend.waiter, cfg.Chain.ConfirmationTimeout, relay.DefaultConfirmWorkers, logger),
		Log:       relay.NewRequestLog(cfg.Service.RequestLogSize),
		Logger:    logger,
		Observer:  metrics,
	})
	if err != nil {
		return err
	}

	apiServer := server.NewServer(cfg, svc, backend.client, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
			return err
		}
	}

	// confirmation waits can hold shutdown for up to their own timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Chain.ConfirmationTimeout+5*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}
