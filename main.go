package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solanafetcher/internal/aggregator"
	"solanafetcher/internal/chain"
	"solanafetcher/internal/config"
	"solanafetcher/internal/dexscreener"
	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/jupiter"
	"solanafetcher/internal/ratelimit"
	"solanafetcher/internal/server"
	"solanafetcher/internal/solscan"
	"solanafetcher/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("rpc", cfg.SolanaRPCURL).
		Str("addr", cfg.ListenAddr).
		Int("batchSize", cfg.BatchSize).
		Dur("batchDelay", cfg.BatchDelay).
		Int("maxRetries", cfg.MaxRetries).
		Msg("starting solana fetcher")

	meterProvider, shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	metrics := fetcher.NewMetrics(meterProvider)

	rpc := chain.New(cfg.SolanaRPCURL)
	defer rpc.Close()

	srv := server.New(cfg.ListenAddr, newAggregator(cfg, rpc, metrics, logger), cfg.RequestTimeout, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	if err := shutdownTelemetry(ctx); err != nil {
		logger.Error().Err(err).Msg("error flushing metrics")
	}
}

// newAggregator wires the upstream sources into an aggregator.
func newAggregator(cfg *config.Config, c aggregator.Chain, metrics *fetcher.Metrics, logger zerolog.Logger) *aggregator.Aggregator {
	scan := solscan.NewClient(cfg.SolscanBaseURL, cfg.HTTPTimeout)

	sources := aggregator.Sources{
		SpotPrice: dexscreener.NewPriceSource(cfg.DexScreenerBaseURL, cfg.HTTPTimeout),
		TokenList: jupiter.NewTokenListSource(cfg.JupiterTokenListURL, cfg.HTTPTimeout),
		Price:     jupiter.NewPriceSource(cfg.JupiterPriceBaseURL, cfg.HTTPTimeout),
		History:   jupiter.NewHistorySource(cfg.JupiterPriceBaseURL, cfg.HTTPTimeout),
		Meta:      scan.MetaSource(),
		Volume:    scan.VolumeSource(),
	}

	aggCfg := aggregator.DefaultConfig()
	aggCfg.ChunkSize = cfg.BatchSize
	aggCfg.ChunkDelay = cfg.BatchDelay
	aggCfg.MaxRetries = cfg.MaxRetries
	aggCfg.RetryDelay = cfg.RetryDelay
	aggCfg.Limiter = ratelimit.New(cfg.RateLimits())
	aggCfg.Metrics = metrics

	return aggregator.New(aggCfg, c, sources, logger)
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
