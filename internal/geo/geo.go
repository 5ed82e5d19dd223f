// Package geo holds the spherical geometry shared by the storage backends and the ranker.
package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle computations
const EarthRadiusKm = 6371.0

const boxEpsilon = 1e-9

// snapLevel is the S2 cell level user locations are snapped to (cells are roughly 10 m wide)
const snapLevel = 20

// DistanceKm returns the great-circle distance between two points in kilometres
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// ValidCoordinates reports whether lat/lng are finite and inside WGS84 bounds
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Box is a latitude/longitude rectangle in degrees.
// When CrossesAntimeridian is set the longitude range wraps: lng >= MinLng OR lng <= MaxLng.
type Box struct {
	MinLat, MaxLat      float64
	MinLng, MaxLng      float64
	CrossesAntimeridian bool
}

// Contains reports whether the point lies inside the box
func (b Box) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian {
		return lng >= b.MinLng || lng <= b.MaxLng
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

// BoundingRect returns a box that contains every point within radiusKm of the centre.
// The box is the bound of the spherical cap around the centre, so it widens with latitude,
// covers all longitudes when the cap reaches a pole and wraps across the antimeridian.
func BoundingRect(lat, lng, radiusKm float64) Box {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	angle := s1.Angle(radiusKm / EarthRadiusKm)
	rect := s2.CapFromCenterAngle(center, angle).RectBound()

	box := Box{
		MinLat: rect.Lat.Lo * 180 / math.Pi,
		MaxLat: rect.Lat.Hi * 180 / math.Pi,
		MinLng: rect.Lng.Lo * 180 / math.Pi,
		MaxLng: rect.Lng.Hi * 180 / math.Pi,
	}
	// absorb rounding from the degree conversion
	box.MinLat = math.Max(-90, box.MinLat-boxEpsilon)
	box.MaxLat = math.Min(90, box.MaxLat+boxEpsilon)
	box.MinLng -= boxEpsilon
	box.MaxLng += boxEpsilon

	if rect.Lng.IsFull() {
		box.MinLng, box.MaxLng = -180, 180
	} else if rect.Lng.IsInverted() {
		box.CrossesAntimeridian = true
	}
	return box
}

// Snap moves a point to the centre of its S2 cell and returns the cell token.
// Nearby requests that differ only by floating noise share the token and the snapped point.
func Snap(lat, lng float64) (token string, snappedLat, snappedLng float64) {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(snapLevel)
	ll := cell.LatLng()
	return cell.ToToken(), ll.Lat.Degrees(), ll.Lng.Degrees()
}
