package seeder

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/model"
	"go.uber.org/zap"
)

const defaultBatchSize = 5000

// columnAliases maps every accepted header name onto the canonical column
var columnAliases = map[string]string{
	"id":           "id",
	"city_id":      "id",
	"name":         "name",
	"city_name":    "name",
	"ascii_name":   "ascii_name",
	"city_ascii":   "ascii_name",
	"state_name":   "state",
	"state":        "state",
	"state_code":   "state_code",
	"country_name": "country",
	"country":      "country",
	"country_code": "country_code",
	"iso2":         "country_code",
	"latitude":     "lat",
	"lat":          "lat",
	"longitude":    "lng",
	"lng":          "lng",
	"population":   "population",
}

var requiredColumns = []string{"id", "name", "country", "country_code", "lat", "lng"}

// ParseStats summarizes one pass over a data file
type ParseStats struct {
	Rows     int
	Accepted int
	Filtered int
	Invalid  int
}

// Parser reads the countries-states-cities CSV dataset
type Parser struct {
	dataDir   string
	file      string
	batchSize int
	countries map[string]bool
	logger    *zap.Logger
}

// NewParser creates a new parser instance with config
func NewParser(cfg config.SeederConfig, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}

	var countries map[string]bool
	for _, code := range cfg.Countries {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "ALL" {
			countries = nil
			break
		}
		if code == "" {
			continue
		}
		if countries == nil {
			countries = make(map[string]bool)
		}
		countries[code] = true
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Parser{
		dataDir:   cfg.DataDir,
		file:      cfg.File,
		batchSize: batchSize,
		countries: countries,
		logger:    logger,
	}
}

// Path returns the data file the parser would read. A zip archive next to the
// CSV with the same stem takes precedence.
func (p *Parser) Path() string {
	csvPath := p.file
	if !filepath.IsAbs(csvPath) {
		csvPath = filepath.Join(p.dataDir, p.file)
	}
	zipPath := strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".zip"
	if _, err := os.Stat(zipPath); err == nil {
		return zipPath
	}
	return csvPath
}

// ParseCities streams the data file and hands cities to fn in batches
func (p *Parser) ParseCities(fn func(batch []model.City) error) (ParseStats, error) {
	path := p.Path()
	p.logger.Info("Parsing city data", zap.String("path", path))

	if strings.HasSuffix(path, ".zip") {
		return p.parseCitiesFromZip(path, fn)
	}

	file, err := os.Open(path)
	if err != nil {
		return ParseStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return p.ParseReader(file, fn)
}

func (p *Parser) parseCitiesFromZip(zipPath string, fn func(batch []model.City) error) (ParseStats, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return ParseStats{}, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if strings.HasSuffix(f.Name, ".csv") {
			rc, err := f.Open()
			if err != nil {
				return ParseStats{}, fmt.Errorf("failed to open file in zip: %w", err)
			}
			defer rc.Close()
			return p.ParseReader(rc, fn)
		}
	}

	return ParseStats{}, fmt.Errorf("no csv file found in zip")
}

// ParseReader parses CSV rows from reader. The first row must be a header.
// Rows without a country code or with malformed id or coordinates are skipped.
func (p *Parser) ParseReader(reader io.Reader, fn func(batch []model.City) error) (ParseStats, error) {
	var stats ParseStats

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return stats, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return stats, err
	}

	batch := make([]model.City, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 || fn == nil {
			batch = batch[:0]
			return nil
		}
		if err := fn(batch); err != nil {
			return fmt.Errorf("batch callback error: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rows++
				stats.Invalid++
				p.logger.Debug("Skipping malformed row", zap.Error(err))
				continue
			}
			return stats, fmt.Errorf("failed to read csv: %w", err)
		}
		stats.Rows++

		city, ok := columns.city(record)
		if !ok {
			stats.Invalid++
			continue
		}
		if p.countries != nil && !p.countries[strings.ToUpper(city.CountryCode)] {
			stats.Filtered++
			continue
		}

		batch = append(batch, city)
		stats.Accepted++
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	columns := make(columnIndex)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return columns, nil
}

func (c columnIndex) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columnIndex) optional(record []string, name string) *string {
	v := c.get(record, name)
	if v == "" {
		return nil
	}
	return &v
}

func (c columnIndex) city(record []string) (model.City, bool) {
	id, err := strconv.ParseInt(c.get(record, "id"), 10, 64)
	if err != nil {
		return model.City{}, false
	}
	name := c.get(record, "name")
	countryCode := strings.ToUpper(c.get(record, "country_code"))
	if name == "" || countryCode == "" {
		return model.City{}, false
	}
	lat, err := strconv.ParseFloat(c.get(record, "lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return model.City{}, false
	}
	lng, err := strconv.ParseFloat(c.get(record, "lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		return model.City{}, false
	}

	asciiName := c.get(record, "ascii_name")
	if asciiName == "" {
		asciiName = name
	}

	city := model.City{
		ID:          id,
		Name:        name,
		ASCIIName:   asciiName,
		State:       c.optional(record, "state"),
		StateCode:   c.optional(record, "state_code"),
		Country:     c.get(record, "country"),
		CountryCode: countryCode,
		Lat:         lat,
		Lng:         lng,
	}
	if pop := c.get(record, "population"); pop != "" {
		if f, err := strconv.ParseFloat(pop, 64); err == nil && f >= 0 {
			n := int64(f)
			city.Population = &n
		}
	}
	return city, true
}
