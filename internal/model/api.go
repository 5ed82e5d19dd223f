package model

// SearchResponse represents the response for city search
type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []RankedResult `json:"results"`
}

// CitiesResponse represents a plain list of cities
type CitiesResponse struct {
	Count   int    `json:"count"`
	Results []City `json:"results"`
}

// NearbyCity represents a city found by a radius query
type NearbyCity struct {
	City
	DistanceKm float64 `json:"distance_km"`
}

// NearbyResponse represents the response for a radius query
type NearbyResponse struct {
	RequestCoordinates Coordinate   `json:"request_coordinates"`
	RadiusKm           float64      `json:"radius_km"`
	Count              int          `json:"count"`
	Results            []NearbyCity `json:"results"`
}

// NamesResponse represents a list of countries or states
type NamesResponse struct {
	Count   int      `json:"count"`
	Results []string `json:"results"`
}

// ErrorResponse is returned by the HTTP layer on failure
type ErrorResponse struct {
	Error string `json:"error"`
}
