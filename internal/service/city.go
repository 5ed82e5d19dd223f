package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
)

// DefaultRadiusKm is used by GetCitiesByCoordinates when no radius is given
const DefaultRadiusKm = 10.0

// GetCityByID retrieves a city; nil, nil when it does not exist
func (s *Service) GetCityByID(ctx context.Context, id int64) (*model.City, error) {
	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	city, err := s.cityRepo.FindByID(sctx, id)
	if err != nil {
		return nil, storageError("get city", err)
	}
	return city, nil
}

// GetCitiesByCoordinates returns cities within radiusKm of the point, nearest first.
// A zero radius means DefaultRadiusKm.
func (s *Service) GetCitiesByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.Candidate, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("%w: coordinates out of range (%g, %g)", model.ErrInvalidFilter, lat, lng)
	}
	if radiusKm == 0 {
		radiusKm = DefaultRadiusKm
	}
	if math.IsNaN(radiusKm) || radiusKm < 0 || radiusKm > s.cfg.MaxRadiusKm {
		return nil, fmt.Errorf("%w: radius must be within (0, %g] km", model.ErrInvalidFilter, s.cfg.MaxRadiusKm)
	}

	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	cities, err := s.cityRepo.FindWithinRadius(sctx, lat, lng, radiusKm, s.cfg.MaxLimit)
	if err != nil {
		return nil, storageError("find cities within radius", err)
	}
	return cities, nil
}

// GetCountries returns every country name in the dataset
func (s *Service) GetCountries(ctx context.Context) ([]string, error) {
	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	countries, err := s.cityRepo.ListCountries(sctx)
	if err != nil {
		return nil, storageError("list countries", err)
	}
	return countries, nil
}

// GetStates returns the states of a country given by name or ISO code
func (s *Service) GetStates(ctx context.Context, country string) ([]string, error) {
	if strings.TrimSpace(country) == "" {
		return nil, fmt.Errorf("%w: country is required", model.ErrInvalidFilter)
	}

	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	states, err := s.cityRepo.ListStates(sctx, country)
	if err != nil {
		return nil, storageError("list states", err)
	}
	return states, nil
}

// GetCitiesInState returns the cities of a state, most populous first
func (s *Service) GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error) {
	if strings.TrimSpace(state) == "" || strings.TrimSpace(country) == "" {
		return nil, fmt.Errorf("%w: state and country are required", model.ErrInvalidFilter)
	}

	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	cities, err := s.cityRepo.ListCitiesInState(sctx, state, country)
	if err != nil {
		return nil, storageError("list cities in state", err)
	}
	return cities, nil
}
