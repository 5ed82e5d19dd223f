package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alexivanou/geoquery/internal/cache"
	"github.com/alexivanou/geoquery/internal/fuzzy"
	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/ranking"
	"go.uber.org/zap"
)

// Search returns cities matching the query text, ranked for the caller and
// truncated to the query limit
func (s *Service) Search(ctx context.Context, q model.SearchQuery) ([]model.RankedResult, error) {
	q, err := s.normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	key := cache.NewKey(q)
	if s.cache != nil {
		if results, ok := s.cache.Get(key); ok {
			s.logger.Debug("Search cache hit", zap.String("query", q.Text), zap.Int("results", len(results)))
			return results, nil
		}
	}

	// the flight outlives any single caller, so one caller going away cannot fail the others
	ch := s.flights.DoChan(string(key), func() (interface{}, error) {
		// an identical flight may have finished between the lookup above and this one
		if s.cache != nil {
			if results, ok := s.cache.Peek(key); ok {
				return results, nil
			}
		}

		results, err := s.search(context.WithoutCancel(ctx), q)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Put(key, results)
		}
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, storageError("search cities", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		results := res.Val.([]model.RankedResult)
		if res.Shared {
			results = model.CloneResults(results)
		}
		return results, nil
	}
}

func (s *Service) search(ctx context.Context, q model.SearchQuery) ([]model.RankedResult, error) {
	candidates, err := s.fetchCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	scored := s.score(q.Text, candidates)
	ranked := s.ranker.Rank(scored, ranking.Context{
		UserCountry:  q.UserCountry,
		UserLocation: q.UserLocation,
	})
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}

	s.logger.Debug("Search executed",
		zap.String("query", q.Text),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(scored)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

func (s *Service) fetchCandidates(ctx context.Context, q model.SearchQuery) ([]model.Candidate, error) {
	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	if s.cfg.FuzzySearchEnabled {
		candidates, err := s.cityRepo.FuzzyCandidates(sctx, q.Text, q.Country, s.cfg.MaxCandidates)
		if err != nil {
			return nil, storageError("fetch fuzzy candidates", err)
		}
		return candidates, nil
	}

	candidates, err := s.cityRepo.FindByPrefix(sctx, q.Text, q.Country, s.cfg.MaxCandidates)
	if err != nil {
		return nil, storageError("search cities by prefix", err)
	}
	return candidates, nil
}

// score applies the fuzzy gate. Prefix hits are text matches by construction and
// score 1.0, except in strict mode where only exact names may pass.
func (s *Service) score(text string, candidates []model.Candidate) []ranking.Scored {
	scored := make([]ranking.Scored, 0, len(candidates))
	for _, c := range candidates {
		if !s.cfg.FuzzySearchEnabled {
			scored = append(scored, ranking.Scored{City: c.City, TextScore: 1.0})
			continue
		}

		if !s.matcher.Strict() && (fuzzy.HasPrefix(c.Name, text) || fuzzy.HasPrefix(c.ASCIIName, text)) {
			scored = append(scored, ranking.Scored{City: c.City, TextScore: 1.0})
			continue
		}

		if score, ok := s.matcher.Match(text, c.Name, c.ASCIIName); ok {
			scored = append(scored, ranking.Scored{City: c.City, TextScore: score})
		}
	}
	return scored
}

// normalizeQuery validates the query and resolves defaults. The returned query owns
// its location, snapped to the cell used for cache keys.
func (s *Service) normalizeQuery(q model.SearchQuery) (model.SearchQuery, error) {
	q.Text = strings.Join(strings.Fields(q.Text), " ")
	if utf8.RuneCountInString(q.Text) < s.cfg.MinQueryLength || q.Text == "" {
		return q, fmt.Errorf("%w: query must be at least %d characters", model.ErrInvalidQuery, s.cfg.MinQueryLength)
	}

	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.Limit < 1 || q.Limit > s.cfg.MaxLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", model.ErrInvalidQuery, s.cfg.MaxLimit)
	}

	q.Country = strings.TrimSpace(q.Country)
	q.UserCountry = strings.TrimSpace(q.UserCountry)

	if loc := q.UserLocation; loc != nil {
		if !geo.ValidCoordinates(loc.Lat, loc.Lng) {
			return q, fmt.Errorf("%w: user location out of range (%g, %g)", model.ErrInvalidQuery, loc.Lat, loc.Lng)
		}
		_, lat, lng := geo.Snap(loc.Lat, loc.Lng)
		q.UserLocation = &model.Coordinate{Lat: lat, Lng: lng}
	}

	// location signals cannot change the order, keep them out of the key
	if !s.cfg.LocationAwareEnabled {
		q.UserLocation = nil
		q.UserCountry = ""
	}
	return q, nil
}
