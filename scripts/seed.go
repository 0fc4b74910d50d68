package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zatekoja/localservices/internal/adapters/database"
	"github.com/zatekoja/localservices/internal/adapters/search"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
)

type seedProvider struct {
	id, name, service, neighborhood string
	lat, lon                        float64
	availability                    entities.AvailabilityStatus
}

// Providers spread across Rio de Janeiro so every radius step returns something different
var providers = []seedProvider{
	{"seed-prov-ana", "Ana Pereira", "Encanador", "Tijuca", -22.9035, -43.2096, entities.AvailabilityAvailable},
	{"seed-prov-joao", "João Batista", "Eletricista", "Centro", -22.9083, -43.1964, entities.AvailabilityAvailable},
	{"seed-prov-marta", "Marta Oliveira", "Diarista", "Botafogo", -22.9519, -43.1857, entities.AvailabilityBusy},
	{"seed-prov-rafael", "Rafael Costa", "Pintor", "Copacabana", -22.9711, -43.1822, entities.AvailabilityAvailable},
	{"seed-prov-carla", "Carla Souza", "Eletricista", "Barra da Tijuca", -23.0004, -43.3659, entities.AvailabilityAvailable},
	{"seed-prov-luis", "Luís Fernandes", "Marceneiro", "Niterói", -22.8832, -43.1034, entities.AvailabilityBusy},
}

var clients = []struct{ id, name string }{
	{"seed-client-bruno", "Bruno Lima"},
	{"seed-client-dani", "Daniela Rocha"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Env)
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		logger.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE messages, reviews, conversations, users CASCADE`); err != nil {
			logger.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	userRepo := database.NewUserAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	providerRepo := database.NewProviderAdapter(pgClient)

	profiles := services.NewProfileService(userRepo, nil)
	chat := services.NewChatSessionService(conversationRepo, userRepo, nil)
	messages := services.NewMessageService(conversationRepo, database.NewMessageAdapter(pgClient), userRepo, nil, nil)
	reviews := services.NewReviewService(database.NewReviewAdapter(pgClient), providerRepo, userRepo, nil)

	// 1. Providers
	for _, p := range providers {
		coord := entities.Coordinate{Latitude: p.lat, Longitude: p.lon}
		_, err := profiles.Save(ctx, &entities.UserProfile{
			ID:          p.id,
			Role:        entities.RoleProvider,
			DisplayName: p.name,
			Provider: &entities.ProviderDetails{
				ServiceType:        p.service,
				Neighborhood:       p.neighborhood,
				Coordinate:         &coord,
				AvailabilityStatus: p.availability,
			},
		})
		if err != nil {
			logger.Error().Err(err).Str("provider", p.name).Msg("failed to create provider")
		}
	}

	// 2. Clients
	for _, c := range clients {
		if _, err := profiles.Save(ctx, &entities.UserProfile{ID: c.id, Role: entities.RoleClient, DisplayName: c.name}); err != nil {
			logger.Error().Err(err).Str("client", c.name).Msg("failed to create client")
		}
	}

	// 3. A conversation with a reply waiting for the provider
	conversationID, err := chat.CreateOrGetConversation(ctx, "seed-client-bruno", "seed-prov-ana", "", "")
	if err != nil {
		logger.Error().Err(err).Msg("failed to create conversation")
	} else {
		for _, m := range []struct{ from, text string }{
			{"seed-client-bruno", "Olá! Você consegue olhar um vazamento na cozinha?"},
			{"seed-prov-ana", "Consigo sim, amanhã de manhã está bom?"},
			{"seed-client-bruno", "Perfeito, até amanhã."},
		} {
			if _, err := messages.Send(ctx, conversationID, m.from, "", m.text); err != nil {
				logger.Error().Err(err).Msg("failed to send message")
			}
		}
	}

	// 4. Reviews
	for _, r := range []struct {
		provider, reviewer string
		rating             int
		comment            string
	}{
		{"seed-prov-ana", "seed-client-bruno", 5, "Excelente, resolveu rápido."},
		{"seed-prov-ana", "seed-client-dani", 4, "Muito atenciosa."},
		{"seed-prov-joao", "seed-client-dani", 3, ""},
	} {
		if _, err := reviews.Submit(ctx, r.provider, r.reviewer, "", r.rating, r.comment); err != nil {
			logger.Error().Err(err).Str("provider", r.provider).Msg("failed to create review")
		}
	}

	// 5. Search index, when Typesense is reachable
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Warn().Err(err).Msg("Typesense unavailable, skipping index")
		} else {
			if err := tsClient.InitSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			n, err := services.NewProviderIndexService(providerRepo, search.NewTypesenseAdapter(tsClient)).Reindex(ctx, 0)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to index providers")
			} else {
				logger.Info().Int("indexed", n).Msg("providers indexed")
			}
		}
	}

	logger.Info().Int("providers", len(providers)).Int("clients", len(clients)).Msg("seeding completed")
}
