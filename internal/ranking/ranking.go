// Package ranking orders text-matched cities using the caller's country and position.
package ranking

import (
	"sort"
	"strings"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
)

// DistanceScaleKm is the distance at which the proximity term falls to half its weight
const DistanceScaleKm = 100.0

// Options configure a Ranker
type Options struct {
	LocationAware  bool
	CountryBoost   float64
	DistanceWeight float64
}

// Scored is a city that already passed the text gate
type Scored struct {
	City      model.City
	TextScore float64
}

// Context carries the optional location signals of one request
type Context struct {
	UserCountry  string
	UserLocation *model.Coordinate
}

// Ranker computes location scores and sorts results into a total order
type Ranker struct {
	opts Options
}

// NewRanker creates a ranker
func NewRanker(opts Options) *Ranker {
	return &Ranker{opts: opts}
}

// Rank scores every entry and returns them sorted by
// text score desc, location score desc, population desc, lower(name) asc, id asc.
// The input slice is not modified.
func (r *Ranker) Rank(scored []Scored, rc Context) []model.RankedResult {
	results := make([]model.RankedResult, 0, len(scored))
	for _, s := range scored {
		results = append(results, r.score(s, rc))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return less(&results[i], &results[j])
	})
	return results
}

func (r *Ranker) score(s Scored, rc Context) model.RankedResult {
	res := model.RankedResult{
		City:      s.City,
		TextScore: s.TextScore,
	}
	if !r.opts.LocationAware {
		return res
	}

	if country := strings.TrimSpace(rc.UserCountry); country != "" && s.City.InCountry(country) {
		res.LocationScore += r.opts.CountryBoost
	}

	if loc := rc.UserLocation; loc != nil {
		d := geo.DistanceKm(loc.Lat, loc.Lng, s.City.Lat, s.City.Lng)
		res.DistanceKm = &d
		res.LocationScore += r.opts.DistanceWeight * ProximityScore(d)
	}
	return res
}

// ProximityScore maps a distance in km to (0, 1], 1 at the user's position
func ProximityScore(distanceKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	return 1 / (1 + distanceKm/DistanceScaleKm)
}

func less(a, b *model.RankedResult) bool {
	if a.TextScore != b.TextScore {
		return a.TextScore > b.TextScore
	}
	if a.LocationScore != b.LocationScore {
		return a.LocationScore > b.LocationScore
	}
	if pa, pb := a.City.PopulationOrZero(), b.City.PopulationOrZero(); pa != pb {
		return pa > pb
	}
	if na, nb := strings.ToLower(a.City.Name), strings.ToLower(b.City.Name); na != nb {
		return na < nb
	}
	return a.City.ID < b.City.ID
}
