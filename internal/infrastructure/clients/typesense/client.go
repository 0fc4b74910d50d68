package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
	"github.com/zatekoja/localservices/pkg/retry"
)

const (
	ProvidersCollection = "providers"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	logger := observability.GetLogger()
	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).
				Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// ProvidersSchema describes the providers collection
func ProvidersSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: ProvidersCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "display_name", Type: "string"},
			{Name: "service_type", Type: "string", Facet: pointer.True()},
			{Name: "neighborhood", Type: "string", Facet: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "has_location", Type: "bool"},
			{Name: "rating_average", Type: "float"},
			{Name: "review_count", Type: "int32"},
			{Name: "availability_status", Type: "string", Facet: pointer.True()},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}
}

// InitSchema ensures the providers collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	logger := observability.LoggerFromContext(ctx)
	for _, col := range collections {
		if col.Name == ProvidersCollection {
			logger.Debug().Str("collection", ProvidersCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, ProvidersSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info().Str("collection", ProvidersCollection).Msg("created Typesense collection")
	return nil
}

// DropSchema deletes the providers collection if it exists
func (c *Client) DropSchema(ctx context.Context) error {
	if _, err := c.client.Collection(ProvidersCollection).Delete(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
