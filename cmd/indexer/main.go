package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zatekoja/localservices/internal/adapters/database"
	"github.com/zatekoja/localservices/internal/adapters/events"
	"github.com/zatekoja/localservices/internal/adapters/search"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/redis"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
	"github.com/zatekoja/localservices/pkg/secrets"
)

func main() {
	var reset, watch bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.BoolVar(&watch, "watch", false, "keep running and index providers as they change")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	// Vault values land in the environment before config.Load reads it.
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)
	logger := observability.GetLogger()
	if vaultErr != nil {
		logger.Fatal().Err(vaultErr).Msg("failed to load secrets from Vault")
	}
	if vaultResult.Enabled {
		logger.Info().Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("secrets loaded from Vault")
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}
	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			logger.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			logger.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Typesense client")
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		logger.Info().Msg("dropping providers collection")
		if err := tsClient.DropSchema(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to drop collection")
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to init Typesense schema")
	}

	indexer := services.NewProviderIndexService(
		database.NewProviderAdapter(pgClient),
		search.NewTypesenseAdapter(tsClient),
	)

	if watch {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("watch mode needs Redis")
		}
		defer redisClient.Close()
		eventBus := events.NewRedisEventBus(redisClient)
		defer eventBus.Close()

		go func() {
			if err := indexer.Watch(ctx, eventBus); err != nil {
				logger.Error().Err(err).Msg("provider watch stopped")
				stop()
			}
		}()
		logger.Info().Msg("watching provider updates")
	}

	for {
		start := time.Now()
		n, err := indexer.Reindex(ctx, 0)
		if err != nil {
			logger.Error().Err(err).Msg("reindex failed")
		} else {
			logger.Info().Int("indexed", n).Dur("took", time.Since(start)).Msg("reindex complete")
		}

		if interval <= 0 && !watch {
			return
		}

		var next <-chan time.Time
		if interval > 0 {
			next = time.After(interval)
			logger.Info().Dur("next_run_in", interval).Msg("waiting for next reindex")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("indexer shutting down")
			return
		case <-next:
		}
	}
}
