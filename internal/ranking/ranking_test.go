package ranking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexivanou/geoquery/internal/model"
)

func ptr[T any](v T) *T { return &v }

func newCities() []model.City {
	return []model.City{
		{ID: 1, Name: "New York", ASCIIName: "New York", Country: "United States", CountryCode: "US", Lat: 40.7128, Lng: -74.0060, Population: ptr[int64](8_000_000)},
		{ID: 2, Name: "Newark", ASCIIName: "Newark", Country: "United States", CountryCode: "US", Lat: 40.7357, Lng: -74.1724, Population: ptr[int64](280_000)},
		{ID: 3, Name: "New Delhi", ASCIIName: "New Delhi", Country: "India", CountryCode: "IN", Lat: 28.6139, Lng: 77.2090, Population: ptr[int64](30_000_000)},
	}
}

func prefixHits(cities []model.City) []Scored {
	out := make([]Scored, len(cities))
	for i, c := range cities {
		out[i] = Scored{City: c, TextScore: 1.0}
	}
	return out
}

func names(results []model.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.City.Name
	}
	return out
}

func defaultOptions() Options {
	return Options{LocationAware: true, CountryBoost: 25000, DistanceWeight: 0.3}
}

func TestRank(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		ctx      Context
		expected []string
	}{
		{
			name:     "population breaks text ties",
			opts:     defaultOptions(),
			expected: []string{"New Delhi", "New York", "Newark"},
		},
		{
			name:     "user country by name",
			opts:     defaultOptions(),
			ctx:      Context{UserCountry: "United States"},
			expected: []string{"New York", "Newark", "New Delhi"},
		},
		{
			name:     "user country by code",
			opts:     defaultOptions(),
			ctx:      Context{UserCountry: "in"},
			expected: []string{"New Delhi", "New York", "Newark"},
		},
		{
			name:     "proximity",
			opts:     defaultOptions(),
			ctx:      Context{UserLocation: &model.Coordinate{Lat: 40.7357, Lng: -74.1724}},
			expected: []string{"Newark", "New York", "New Delhi"},
		},
		{
			name:     "location disabled ignores context",
			opts:     Options{LocationAware: false, CountryBoost: 25000, DistanceWeight: 0.3},
			ctx:      Context{UserCountry: "United States", UserLocation: &model.Coordinate{Lat: 40.7357, Lng: -74.1724}},
			expected: []string{"New Delhi", "New York", "Newark"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRanker(tt.opts)
			results := r.Rank(prefixHits(newCities()), tt.ctx)
			assert.Equal(t, tt.expected, names(results))
		})
	}
}

func TestRank_TextScoreDominates(t *testing.T) {
	cities := newCities()
	scored := []Scored{
		{City: cities[2], TextScore: 0.8},
		{City: cities[1], TextScore: 1.0},
	}
	results := NewRanker(defaultOptions()).Rank(scored, Context{UserCountry: "India"})
	assert.Equal(t, []string{"Newark", "New Delhi"}, names(results))
	assert.Equal(t, 25000.0, results[1].LocationScore)
}

func TestRank_SetsDistance(t *testing.T) {
	r := NewRanker(defaultOptions())

	results := r.Rank(prefixHits(newCities()), Context{UserLocation: &model.Coordinate{Lat: 40.7128, Lng: -74.0060}})
	require.Len(t, results, 3)
	for _, res := range results {
		require.NotNil(t, res.DistanceKm)
	}
	assert.Equal(t, "New York", results[0].City.Name)
	assert.InDelta(t, 0, *results[0].DistanceKm, 1e-6)
	assert.InDelta(t, 0.3, results[0].LocationScore, 1e-9)

	results = r.Rank(prefixHits(newCities()), Context{})
	for _, res := range results {
		assert.Nil(t, res.DistanceKm)
		assert.Zero(t, res.LocationScore)
	}
}

func TestRank_TotalOrder(t *testing.T) {
	cities := append(newCities(),
		model.City{ID: 10, Name: "Springfield", Country: "United States", CountryCode: "US"},
		model.City{ID: 11, Name: "springfield", Country: "United States", CountryCode: "US"},
		model.City{ID: 12, Name: "Springfield", Country: "United States", CountryCode: "US"},
	)
	r := NewRanker(defaultOptions())
	expected := r.Rank(prefixHits(cities), Context{UserCountry: "US"})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]model.City(nil), cities...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, expected, r.Rank(prefixHits(shuffled), Context{UserCountry: "US"}))
	}

	var ids []int64
	for _, res := range expected {
		ids = append(ids, res.City.ID)
	}
	assert.Equal(t, []int64{1, 2, 10, 11, 12, 3}, ids)
}

func TestProximityScore(t *testing.T) {
	assert.Equal(t, 1.0, ProximityScore(0))
	assert.Equal(t, 0.5, ProximityScore(DistanceScaleKm))
	assert.Equal(t, 1.0, ProximityScore(-3))
	assert.Greater(t, ProximityScore(10), ProximityScore(20))
}
