package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/jmoiron/sqlx"
)

// bulkChunkSize keeps a batch insert below SQLite's 999 bound variables
const bulkChunkSize = 90

// limitedCityRepository answers every query with plain B-tree indexes.
// Queries are written with ? placeholders and rebound for the driver in use.
type limitedCityRepository struct {
	db      *sqlx.DB
	backend string
}

func (r *limitedCityRepository) Capabilities() Capabilities {
	return Capabilities{Backend: r.backend}
}

func (r *limitedCityRepository) FindByPrefix(ctx context.Context, text, country string, limit int) ([]model.Candidate, error) {
	pattern := prefixPattern(text)
	args := []interface{}{pattern, pattern}

	q := `SELECT ` + cityColumns + ` FROM cities
		WHERE (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(ascii_name) LIKE ? ESCAPE '\')`
	if c := strings.ToLower(strings.TrimSpace(country)); c != "" {
		q += ` AND (LOWER(country) = ? OR LOWER(country_code) = ?)`
		args = append(args, c, c)
	}
	q += ` ORDER BY population IS NULL, population DESC, LOWER(name), id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var candidates []model.Candidate
	if err := r.db.SelectContext(ctx, &candidates, r.db.Rebind(q), args...); err != nil {
		return nil, classifyError(err)
	}
	return candidates, nil
}

// FuzzyCandidates widens the prefix search to the stem of the query so that
// misspellings after the first letters still reach the scorer
func (r *limitedCityRepository) FuzzyCandidates(ctx context.Context, text, country string, max int) ([]model.Candidate, error) {
	s := stem(text)
	if s == "" {
		return nil, nil
	}
	return r.FindByPrefix(ctx, s, country, max)
}

func (r *limitedCityRepository) FindWithinRadius(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]model.Candidate, error) {
	if err := validateRadius(lat, lng, radiusKm); err != nil {
		return nil, err
	}

	box := geo.BoundingRect(lat, lng, radiusKm)
	q := `SELECT ` + cityColumns + ` FROM cities WHERE lat BETWEEN ? AND ?`
	args := []interface{}{box.MinLat, box.MaxLat}
	if box.CrossesAntimeridian {
		q += ` AND (lng >= ? OR lng <= ?)`
	} else {
		q += ` AND lng BETWEEN ? AND ?`
	}
	args = append(args, box.MinLng, box.MaxLng)

	var inBox []model.Candidate
	if err := r.db.SelectContext(ctx, &inBox, r.db.Rebind(q), args...); err != nil {
		return nil, classifyError(err)
	}

	candidates := inBox[:0]
	for _, c := range inBox {
		d := geo.DistanceKm(lat, lng, c.Lat, c.Lng)
		if d > radiusKm {
			continue
		}
		c.DistanceKm = d
		candidates = append(candidates, c)
	}
	sortByDistance(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (r *limitedCityRepository) FindByID(ctx context.Context, id int64) (*model.City, error) {
	var city model.City
	q := r.db.Rebind(`SELECT ` + cityColumns + ` FROM cities WHERE id = ?`)
	if err := r.db.GetContext(ctx, &city, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return &city, nil
}

func (r *limitedCityRepository) ListCountries(ctx context.Context) ([]string, error) {
	var countries []string
	if err := r.db.SelectContext(ctx, &countries, `SELECT DISTINCT country FROM cities ORDER BY country`); err != nil {
		return nil, classifyError(err)
	}
	return countries, nil
}

func (r *limitedCityRepository) ListStates(ctx context.Context, country string) ([]string, error) {
	c := strings.ToLower(strings.TrimSpace(country))
	q := r.db.Rebind(`
		SELECT DISTINCT state FROM cities
		WHERE (LOWER(country) = ? OR LOWER(country_code) = ?)
			AND state IS NOT NULL AND state <> ''
		ORDER BY state`)

	var states []string
	if err := r.db.SelectContext(ctx, &states, q, c, c); err != nil {
		return nil, classifyError(err)
	}
	return states, nil
}

func (r *limitedCityRepository) ListCitiesInState(ctx context.Context, state, country string) ([]model.City, error) {
	s := strings.ToLower(strings.TrimSpace(state))
	c := strings.ToLower(strings.TrimSpace(country))
	q := r.db.Rebind(`SELECT ` + cityColumns + ` FROM cities
		WHERE (LOWER(state) = ? OR LOWER(state_code) = ?)
			AND (LOWER(country) = ? OR LOWER(country_code) = ?)
		ORDER BY population IS NULL, population DESC, LOWER(name), id`)

	var cities []model.City
	if err := r.db.SelectContext(ctx, &cities, q, s, s, c, c); err != nil {
		return nil, classifyError(err)
	}
	return cities, nil
}

func (r *limitedCityRepository) BulkInsertCities(ctx context.Context, cities []model.City) error {
	if len(cities) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError(err)
	}
	defer tx.Rollback()

	q := `INSERT INTO cities (` + cityColumns + `)
		VALUES (:id, :name, :ascii_name, :state, :state_code, :country, :country_code, :lat, :lng, :population)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ascii_name = EXCLUDED.ascii_name,
			state = EXCLUDED.state,
			state_code = EXCLUDED.state_code,
			country = EXCLUDED.country,
			country_code = EXCLUDED.country_code,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			population = EXCLUDED.population`

	for i := 0; i < len(cities); i += bulkChunkSize {
		end := i + bulkChunkSize
		if end > len(cities) {
			end = len(cities)
		}
		if _, err := tx.NamedExecContext(ctx, q, cities[i:end]); err != nil {
			return fmt.Errorf("failed to insert cities %d-%d: %w", i, end, classifyError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (r *limitedCityRepository) CountCities(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cities`); err != nil {
		return 0, classifyError(err)
	}
	return count, nil
}

func validateRadius(lat, lng, radiusKm float64) error {
	if !geo.ValidCoordinates(lat, lng) {
		return fmt.Errorf("%w: coordinates out of range (%g, %g)", model.ErrInvalidFilter, lat, lng)
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %g", model.ErrInvalidFilter, radiusKm)
	}
	return nil
}

// sortByDistance orders by distance, then population desc, then id
func sortByDistance(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if pa, pb := a.PopulationOrZero(), b.PopulationOrZero(); pa != pb {
			return pa > pb
		}
		return a.ID < b.ID
	})
}
