package model

import "strings"

// City represents a city in the database
type City struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	ASCIIName   string  `db:"ascii_name" json:"ascii_name"`
	State       *string `db:"state" json:"state,omitempty"`
	StateCode   *string `db:"state_code" json:"state_code,omitempty"`
	Country     string  `db:"country" json:"country"`
	CountryCode string  `db:"country_code" json:"country_code"`
	Lat         float64 `db:"lat" json:"lat"`
	Lng         float64 `db:"lng" json:"lng"`
	Population  *int64  `db:"population" json:"population,omitempty"`
}

// PopulationOrZero returns the population, treating an unknown value as zero
func (c City) PopulationOrZero() int64 {
	if c.Population == nil {
		return 0
	}
	return *c.Population
}

// InCountry reports whether the city belongs to the given country name or ISO code.
func (c City) InCountry(country string) bool {
	country = strings.TrimSpace(country)
	if country == "" {
		return false
	}
	return strings.EqualFold(c.Country, country) || strings.EqualFold(c.CountryCode, country)
}

// Candidate is a city returned by the storage layer for further scoring.
// Relevance carries the backend's native text rank when it has one.
type Candidate struct {
	City
	Relevance  float64 `db:"relevance" json:"-"`
	DistanceKm float64 `db:"distance_km" json:"distance_km,omitempty"`
}

// Clone returns a copy that shares no pointers with c
func (c City) Clone() City {
	if c.State != nil {
		s := *c.State
		c.State = &s
	}
	if c.StateCode != nil {
		s := *c.StateCode
		c.StateCode = &s
	}
	if c.Population != nil {
		p := *c.Population
		c.Population = &p
	}
	return c
}
