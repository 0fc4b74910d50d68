package services

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
	"github.com/zatekoja/localservices/pkg/geo"
)

const defaultCandidateLimit = 500

// DiscoveryOptions tunes candidate retrieval
type DiscoveryOptions struct {
	DefaultRadiusKm int
	DefaultCap      int
	CandidateLimit  int
}

// DiscoveryService filters and ranks providers around an origin
type DiscoveryService struct {
	providerRepo repositories.ProviderRepository
	searchRepo   repositories.ProviderSearchRepository
	metrics      *observability.Metrics
	opts         DiscoveryOptions
}

// NewDiscoveryService creates a new discovery service. searchRepo is optional;
// when set it is tried first for queries with a known origin.
func NewDiscoveryService(
	providerRepo repositories.ProviderRepository,
	searchRepo repositories.ProviderSearchRepository,
	metrics *observability.Metrics,
	opts DiscoveryOptions,
) *DiscoveryService {
	if opts.DefaultRadiusKm == 0 {
		opts.DefaultRadiusKm = entities.DefaultRadiusKm
	}
	if opts.DefaultCap <= 0 {
		opts.DefaultCap = entities.DefaultResultCap
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = defaultCandidateLimit
	}
	return &DiscoveryService{
		providerRepo: providerRepo,
		searchRepo:   searchRepo,
		metrics:      metrics,
		opts:         opts,
	}
}

// ListCandidates returns the providers matching query, nearest first.
// Store failures surface as DiscoveryUnavailable.
func (s *DiscoveryService) ListCandidates(ctx context.Context, query entities.DiscoveryQuery) ([]*entities.RankedProvider, error) {
	if err := query.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	query = query.Normalize(s.opts.DefaultRadiusKm, s.opts.DefaultCap)

	ctx, span := observability.StartSpan(ctx, "DiscoveryService.ListCandidates")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Int("discovery.radius_km", query.RadiusKm),
		attribute.Bool("discovery.origin_known", query.Origin != nil),
	)

	records, err := s.fetch(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewDiscoveryUnavailableError("failed to load providers", err)
	}

	ranked := RankProviders(records, query)
	observability.RecordDiscoveryResult(ctx, s.metrics, len(ranked), query.Origin != nil)
	return ranked, nil
}

func (s *DiscoveryService) fetch(ctx context.Context, query entities.DiscoveryQuery) ([]*entities.ProviderRecord, error) {
	if s.searchRepo != nil && query.Origin != nil {
		records, err := s.searchRepo.SearchNearby(ctx, repositories.NearbySearchParams{
			Origin:   *query.Origin,
			RadiusKm: float64(query.RadiusKm),
			Limit:    s.opts.CandidateLimit,
		})
		if err == nil {
			return records, nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("provider index search failed, falling back to database")
	}
	return s.providerRepo.ListDiscoverable(ctx, s.opts.CandidateLimit)
}

// RankProviders applies the discovery pipeline to already fetched records:
// required fields, radius, service/neighborhood/free-text filters, a stable
// sort by distance (unknown distance counts as 0) and the result cap.
func RankProviders(records []*entities.ProviderRecord, query entities.DiscoveryQuery) []*entities.RankedProvider {
	service := strings.ToLower(strings.TrimSpace(query.ServiceFilter))
	neighborhood := strings.TrimSpace(query.NeighborhoodFilter)
	freeText := strings.ToLower(strings.TrimSpace(query.FreeText))
	radius := float64(query.RadiusKm)

	ranked := make([]*entities.RankedProvider, 0, len(records))
	for _, record := range records {
		if record == nil || !record.HasRequiredFields() {
			continue
		}

		var distance *float64
		if query.Origin != nil {
			if record.Coordinate == nil {
				continue
			}
			d := geo.DistanceKm(query.Origin.Latitude, query.Origin.Longitude,
				record.Coordinate.Latitude, record.Coordinate.Longitude)
			if d > radius {
				continue
			}
			distance = &d
		}

		if service != "" && !strings.Contains(strings.ToLower(record.ServiceType), service) {
			continue
		}
		if neighborhood != "" && record.Neighborhood != neighborhood {
			continue
		}
		if freeText != "" &&
			!strings.Contains(strings.ToLower(record.DisplayName), freeText) &&
			!strings.Contains(strings.ToLower(record.ServiceType), freeText) {
			continue
		}

		ranked = append(ranked, &entities.RankedProvider{
			ProviderRecord: *record,
			DistanceKm:     distance,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return distanceOrZero(ranked[i]) < distanceOrZero(ranked[j])
	})

	if query.ResultCap > 0 && len(ranked) > query.ResultCap {
		ranked = ranked[:query.ResultCap]
	}
	return ranked
}

func distanceOrZero(p *entities.RankedProvider) float64 {
	if p.DistanceKm == nil {
		return 0
	}
	return *p.DistanceKm
}
