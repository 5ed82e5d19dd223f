package model

// Coordinate represents geographic coordinates in decimal degrees (WGS84)
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchQuery is the input of a ranked city search.
// UserLocation is a pointer so that latitude and longitude are always supplied together.
type SearchQuery struct {
	Text         string
	Country      string
	UserLocation *Coordinate
	UserCountry  string
	Limit        int
}

// RankedResult is a city with the scores that determined its position
type RankedResult struct {
	City          City     `json:"city"`
	TextScore     float64  `json:"text_score"`
	LocationScore float64  `json:"location_score"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
}

// CloneResults deep-copies a result set
func CloneResults(in []RankedResult) []RankedResult {
	if in == nil {
		return nil
	}
	out := make([]RankedResult, len(in))
	for i, r := range in {
		out[i] = r
		out[i].City = r.City.Clone()
		if r.DistanceKm != nil {
			d := *r.DistanceKm
			out[i].DistanceKm = &d
		}
	}
	return out
}
