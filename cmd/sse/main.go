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

	"github.com/zatekoja/localservices/internal/adapters/cache"
	"github.com/zatekoja/localservices/internal/adapters/database"
	"github.com/zatekoja/localservices/internal/adapters/events"
	"github.com/zatekoja/localservices/internal/api/handlers"
	"github.com/zatekoja/localservices/internal/api/routes"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/redis"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
	"github.com/zatekoja/localservices/pkg/secrets"
)

// The stream server runs beside one or more API servers, so it only works
// against the shared Redis event bus.
func main() {
	// Vault values land in the environment before config.Load reads it.
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", cfg.Env)
	logger := observability.GetLogger()
	if vaultErr != nil {
		logger.Fatal().Err(vaultErr).Msg("failed to load secrets from Vault")
	}
	if vaultResult.Enabled {
		logger.Info().Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("secrets loaded from Vault")
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Redis client")
	}
	defer redisClient.Close()
	eventBus := events.NewRedisEventBus(redisClient)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	userRepo := database.NewUserAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	messageRepo := database.NewMessageAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)

	chatService := services.NewChatSessionService(conversationRepo, userRepo, eventBus)
	messageService := services.NewMessageService(conversationRepo, messageRepo, userRepo, eventBus, metrics)

	sseHandler := handlers.NewSSEHandler(chatService, messageService, nil, handlers.NotificationSources{
		ConversationRepo: conversationRepo,
		ReviewRepo:       reviewRepo,
		ReadMarks:        cache.NewReadMarkAdapter(cache.NewRedisAdapter(redisClient)),
		EventBus:         eventBus,
	}, metrics)

	router := routes.NewRouter(nil, nil, nil, nil, nil, nil, sseHandler, userRepo, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.SSEPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("SSE server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("SSE server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("SSE server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing event bus")
	}
	logger.Info().Msg("SSE server stopped")
}
