package repository

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/jmoiron/sqlx"
)

// StemLength is how many leading runes of a query the limited backend uses to
// gather fuzzy candidates
const StemLength = 3

const cityColumns = `id, name, ascii_name, state, state_code, country, country_code, lat, lng, population`

// CityRepository defines operations for cities
type CityRepository interface {
	// FindByPrefix returns cities whose name or ASCII name starts with text
	FindByPrefix(ctx context.Context, text, country string, limit int) ([]model.Candidate, error)
	// FindWithinRadius returns cities within radiusKm ordered by distance
	FindWithinRadius(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]model.Candidate, error)
	// FindByID returns nil, nil when the city does not exist
	FindByID(ctx context.Context, id int64) (*model.City, error)
	ListCountries(ctx context.Context) ([]string, error)
	ListStates(ctx context.Context, country string) ([]string, error)
	ListCitiesInState(ctx context.Context, state, country string) ([]model.City, error)
	// FuzzyCandidates returns at most max cities that may resemble text
	FuzzyCandidates(ctx context.Context, text, country string, max int) ([]model.Candidate, error)
	BulkInsertCities(ctx context.Context, cities []model.City) error
	CountCities(ctx context.Context) (int64, error)
	Capabilities() Capabilities
}

// Capabilities describes the indexes a backend answers queries with
type Capabilities struct {
	Backend      string `json:"backend"`
	SpatialIndex bool   `json:"spatial_index"`
	TrigramIndex bool   `json:"trigram_index"`
}

// Container holds all repositories
type Container struct {
	City CityRepository
}

// NewRepositories creates repository implementations based on DB type.
// PostgreSQL uses PostGIS and pg_trgm only when advanced features are enabled,
// otherwise it is queried the same way as SQLite.
func NewRepositories(db *sqlx.DB, dbType config.DBType, advanced bool) *Container {
	limited := &limitedCityRepository{db: db, backend: string(dbType)}
	if dbType == config.DBTypePostgreSQL && advanced {
		return &Container{
			City: &pgCityRepository{limitedCityRepository: limited},
		}
	}

	return &Container{
		City: limited,
	}
}

// IsDatabaseEmpty reports whether no city has been imported yet
func IsDatabaseEmpty(ctx context.Context, repo CityRepository) (bool, error) {
	n, err := repo.CountCities(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// stem returns the lower-cased first StemLength runes of text
func stem(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if utf8.RuneCountInString(text) <= StemLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:StemLength])
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern builds a LIKE pattern matching values that start with text literally
func prefixPattern(text string) string {
	return likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
}
