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
	"github.com/zatekoja/localservices/internal/adapters/memory"
	"github.com/zatekoja/localservices/internal/adapters/providers/geolocation"
	"github.com/zatekoja/localservices/internal/adapters/search"
	"github.com/zatekoja/localservices/internal/api/handlers"
	"github.com/zatekoja/localservices/internal/api/routes"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/redis"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/localservices/internal/infrastructure/notifications"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
	"github.com/zatekoja/localservices/pkg/secrets"
)

const cacheWarmingInterval = 5 * time.Minute

func main() {
	// Vault values land in the environment before config.Load reads it.
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	logger := observability.GetLogger()
	if vaultErr != nil {
		logger.Fatal().Err(vaultErr).Msg("failed to load secrets from Vault")
	}
	if vaultResult.Enabled {
		logger.Info().Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("secrets loaded from Vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the cache and the event bus. Without it both fall back to
	// in-process implementations, which only suits a single instance.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-process cache and event bus")
		cacheProvider = memory.NewCache()
		eventBus = memory.NewEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var searchRepo repositories.ProviderSearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize Typesense client, discovery reads from the database")
		} else {
			adapter := search.NewTypesenseAdapter(typesenseClient)
			if err := adapter.InitSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	locationProvider, err := geolocation.NewProvider(cfg.Geolocation)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid geolocation configuration")
	}

	// Adapters
	userRepo := database.NewUserAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	messageRepo := database.NewMessageAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)
	providerRepo := database.NewCachedProviderAdapter(
		database.NewProviderAdapter(pgClient), cacheProvider, metrics, cfg.Discovery.CandidateCacheTTLs)
	settingsRepo := cache.NewSettingsAdapter(cacheProvider)
	readMarkRepo := cache.NewReadMarkAdapter(cacheProvider)

	// Services
	locationService := services.NewLocationService(
		locationProvider,
		entities.Coordinate{Latitude: cfg.Geolocation.DefaultLatitude, Longitude: cfg.Geolocation.DefaultLongitude},
		cfg.Geolocation.Timeout,
	)
	discoveryService := services.NewDiscoveryService(providerRepo, searchRepo, metrics, services.DiscoveryOptions{
		DefaultRadiusKm: cfg.Discovery.DefaultRadiusKm,
		DefaultCap:      cfg.Discovery.DefaultResultCap,
		CandidateLimit:  cfg.Discovery.CandidateLimit,
	})
	chatService := services.NewChatSessionService(conversationRepo, userRepo, eventBus)
	messageService := services.NewMessageService(conversationRepo, messageRepo, userRepo, eventBus, metrics)
	reviewService := services.NewReviewService(reviewRepo, providerRepo, userRepo, eventBus)
	profileService := services.NewProfileService(userRepo, eventBus)

	sessions := services.NewSessionManager(services.SessionDependencies{
		Discovery:        discoveryService,
		Location:         locationService,
		Settings:         settingsRepo,
		ConversationRepo: conversationRepo,
		ReviewRepo:       reviewRepo,
		ReadMarks:        readMarkRepo,
		EventBus:         eventBus,
		DefaultRadiusKm:  cfg.Discovery.DefaultRadiusKm,
	})
	defer sessions.CloseAll()

	var alerts *services.OfflineAlertService
	if cfg.Alerts.Enabled() {
		sender, err := notifications.NewWhatsAppCloudSender(cfg.Alerts)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create WhatsApp sender")
		}
		alerts = services.NewOfflineAlertService(userRepo, sender, sessions, services.OfflineAlertOptions{
			TemplateName: cfg.Alerts.TemplateName,
			LanguageCode: cfg.Alerts.LanguageCode,
			Cooldown:     cfg.Alerts.Cooldown,
		})
		messageService.AddObserver(alerts)
		logger.Info().Msg("offline WhatsApp alerts enabled")
	}

	cacheInvalidationService := services.NewCacheInvalidationService(providerRepo, eventBus)
	if err := cacheInvalidationService.Start(); err != nil {
		logger.Warn().Err(err).Msg("failed to start cache invalidation service")
	}
	defer cacheInvalidationService.Stop()

	services.NewCacheWarmingService(providerRepo, cfg.Discovery.CandidateLimit).
		StartPeriodicWarming(ctx, cacheWarmingInterval)

	// Handlers
	sseHandler := handlers.NewSSEHandler(chatService, messageService, sessions, handlers.NotificationSources{
		ConversationRepo: conversationRepo,
		ReviewRepo:       reviewRepo,
		ReadMarks:        readMarkRepo,
		EventBus:         eventBus,
	}, metrics)

	router := routes.NewRouter(
		handlers.NewDiscoveryHandler(sessions, discoveryService, locationService),
		handlers.NewSessionHandler(sessions),
		handlers.NewConversationHandler(chatService, messageService,
			handlers.NewRateLimiter(cacheProvider, "ratelimit:messages", cfg.Messaging.SendRateLimit, time.Minute)),
		handlers.NewNotificationHandler(sessions),
		handlers.NewReviewHandler(reviewService,
			handlers.NewRateLimiter(cacheProvider, "ratelimit:reviews", cfg.Messaging.ReviewRateLimit, time.Hour)),
		handlers.NewProfileHandler(profileService),
		sseHandler,
		userRepo,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the notification stream is served here too.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if alerts != nil {
		alerts.Wait()
	}
	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing event bus")
	}
	logger.Info().Msg("server stopped")
}
