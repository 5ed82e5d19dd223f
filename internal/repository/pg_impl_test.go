package repository

import (
	"testing"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/stretchr/testify/assert"
)

func TestSearchRadiusMeters_CoversPostGISSphere(t *testing.T) {
	for _, radiusKm := range []float64{0.001, 1, 10, 250, 500} {
		// a city geo.DistanceKm puts exactly on the radius, measured on the PostGIS sphere
		postgis := radiusKm / geo.EarthRadiusKm * postgisSphereKm * 1000
		assert.Greater(t, searchRadiusMeters(radiusKm), postgis)
		assert.Less(t, searchRadiusMeters(radiusKm), postgis*1.001)
	}
}
