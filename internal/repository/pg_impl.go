package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
)

// --- PostgreSQL Implementation ---

// postgisSphereKm is the sphere radius ST_DWithin and ST_Distance use with use_spheroid=false
const postgisSphereKm = 6371.0088

// searchRadiusMeters widens the ST_DWithin radius past the PostGIS sphere so that every
// city geo.DistanceKm puts inside radiusKm is fetched; the re-measure decides the boundary.
func searchRadiusMeters(radiusKm float64) float64 {
	return radiusKm * 1000 * (postgisSphereKm / geo.EarthRadiusKm) * 1.0001
}

// pgCityRepository answers radius queries through PostGIS and fuzzy lookups through
// pg_trgm; everything else is shared with the limited implementation.
type pgCityRepository struct {
	*limitedCityRepository
}

func (r *pgCityRepository) Capabilities() Capabilities {
	return Capabilities{Backend: r.backend, SpatialIndex: true, TrigramIndex: true}
}

func (r *pgCityRepository) FindWithinRadius(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]model.Candidate, error) {
	if err := validateRadius(lat, lng, radiusKm); err != nil {
		return nil, err
	}

	q := `
		SELECT ` + cityColumns + `,
			ST_Distance(geog, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, false) / 1000.0 AS distance_km
		FROM cities
		WHERE ST_DWithin(geog, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3, false)
		ORDER BY distance_km, population DESC NULLS LAST, id`
	args := []interface{}{lat, lng, searchRadiusMeters(radiusKm)}
	if limit > 0 {
		q += ` LIMIT $4`
		args = append(args, limit)
	}

	var rows []model.Candidate
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, classifyError(err)
	}

	// re-measure so both backends agree on which cities sit exactly at the boundary.
	// Rows cut by LIMIT are farther than every returned row, so none of them is inside.
	candidates := rows[:0]
	for _, c := range rows {
		c.DistanceKm = geo.DistanceKm(lat, lng, c.Lat, c.Lng)
		if c.DistanceKm <= radiusKm {
			candidates = append(candidates, c)
		}
	}
	sortByDistance(candidates)
	return candidates, nil
}

// FuzzyCandidates uses the trigram index: rows similar to the text under the pg_trgm
// threshold, plus plain prefix matches that are too short to share trigrams.
func (r *pgCityRepository) FuzzyCandidates(ctx context.Context, text, country string, max int) ([]model.Candidate, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil, nil
	}

	q := `
		SELECT ` + cityColumns + `,
			GREATEST(similarity(LOWER(name), $1), similarity(LOWER(ascii_name), $1)) AS relevance
		FROM cities
		WHERE (LOWER(name) % $1 OR LOWER(ascii_name) % $1
			OR LOWER(name) LIKE $2 ESCAPE '\' OR LOWER(ascii_name) LIKE $2 ESCAPE '\')`
	args := []interface{}{t, prefixPattern(t)}
	if c := strings.ToLower(strings.TrimSpace(country)); c != "" {
		q += ` AND (LOWER(country) = $3 OR LOWER(country_code) = $3)`
		args = append(args, c)
	}
	q += ` ORDER BY relevance DESC, population DESC NULLS LAST, id`
	if max > 0 {
		args = append(args, max)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}

	var candidates []model.Candidate
	if err := r.db.SelectContext(ctx, &candidates, q, args...); err != nil {
		return nil, classifyError(err)
	}
	return candidates, nil
}
