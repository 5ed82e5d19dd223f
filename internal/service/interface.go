package service

import (
	"context"

	"github.com/alexivanou/geoquery/internal/cache"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/repository"
)

// ServiceInterface defines the service interface for testing
type ServiceInterface interface {
	Search(ctx context.Context, q model.SearchQuery) ([]model.RankedResult, error)
	GetCityByID(ctx context.Context, id int64) (*model.City, error)
	GetCitiesByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.Candidate, error)
	GetCountries(ctx context.Context) ([]string, error)
	GetStates(ctx context.Context, country string) ([]string, error)
	GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error)
	InvalidateCache()
	CacheStats() (cache.Stats, bool)
	Capabilities() repository.Capabilities
}
