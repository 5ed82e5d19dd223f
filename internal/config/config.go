package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Mode   Mode
	DB     DBConfig
	Server ServerConfig
	Seeder SeederConfig
	Search SearchConfig
}

// Mode selects a feature profile
type Mode string

const (
	ModeAdvanced Mode = "advanced"
	ModeSimple   Mode = "simple"
)

// DBType represents database type
type DBType string

const (
	DBTypePostgreSQL DBType = "postgres"
	DBTypeMemory     DBType = "memory"
	DBTypeSQLite     DBType = "sqlite"
)

// DBConfig holds database configuration
type DBConfig struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
	Pool     PoolConfig
}

// PoolConfig bounds the connection pool and every storage call made through it
type PoolConfig struct {
	MinIdle     int
	MaxOpen     int
	Timeout     time.Duration
	MaxLifetime time.Duration
}

// SeederConfig holds settings for data import
type SeederConfig struct {
	DataDir   string
	File      string
	BatchSize int
	Countries []string
	AutoSeed  bool
}

// SearchConfig holds feature flags and tunables of the query engine
type SearchConfig struct {
	FuzzySearchEnabled   bool
	LocationAwareEnabled bool
	MemoryCachingEnabled bool
	AdvancedDBEnabled    bool

	FuzzyThreshold int
	DistanceWeight float64
	CountryBoost   float64

	CacheSize int
	CacheTTL  time.Duration

	DefaultLimit   int
	MaxLimit       int
	MaxCandidates  int
	MinQueryLength int
	MaxRadiusKm    float64
}

// DefaultSearchConfig returns the engine defaults with every feature enabled
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		FuzzySearchEnabled:   true,
		LocationAwareEnabled: true,
		MemoryCachingEnabled: true,
		AdvancedDBEnabled:    true,
		FuzzyThreshold:       70,
		DistanceWeight:       0.3,
		CountryBoost:         25000,
		CacheSize:            5000,
		CacheTTL:             time.Hour,
		DefaultLimit:         10,
		MaxLimit:             100,
		MaxCandidates:        200,
		MinQueryLength:       2,
		MaxRadiusKm:          500,
	}
}

// DSN returns the database connection string
func (c DBConfig) DSN() string {
	switch c.Type {
	case DBTypeMemory:
		// SQLite in-memory database
		if c.Name != "" && c.Name != "geoquery" {
			return fmt.Sprintf("file:%s?mode=memory&cache=shared", c.Name)
		}
		return "file::memory:?cache=shared"
	case DBTypeSQLite:
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", c.Path, c.Pool.Timeout.Milliseconds())
	}
	// PostgreSQL connection string
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// IsMemory returns true if using in-memory database
func (c DBConfig) IsMemory() bool {
	return c.Type == DBTypeMemory
}

// IsSQLite returns true for both the in-memory and the file backed SQLite database
func (c DBConfig) IsSQLite() bool {
	return c.Type == DBTypeMemory || c.Type == DBTypeSQLite
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbType := DBType(getEnv("DB_TYPE", "memory"))
	if dbType != DBTypePostgreSQL && dbType != DBTypeMemory && dbType != DBTypeSQLite {
		dbType = DBTypeMemory
	}

	mode := Mode(strings.ToLower(getEnv("MODE", string(ModeAdvanced))))
	if mode != ModeSimple {
		mode = ModeAdvanced
	}

	defaults := DefaultSearchConfig()

	config := &Config{
		Mode: mode,
		DB: DBConfig{
			Type:     dbType,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "geoquery"),
			Password: getEnv("DB_PASSWORD", "geoquery_password"),
			Name:     getEnv("DB_NAME", "geoquery"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "geoquery.db"),
			Pool: PoolConfig{
				MinIdle:     getEnvAsInt("DB_POOL_MIN_IDLE", 2),
				MaxOpen:     getEnvAsInt("DB_POOL_MAX_OPEN", 10),
				Timeout:     getEnvAsDuration("DB_POOL_TIMEOUT", 30*time.Second),
				MaxLifetime: getEnvAsDuration("DB_POOL_MAX_LIFETIME", 30*time.Minute),
			},
		},
		Server: ServerConfig{
			Port: getEnv("APP_PORT", "8080"),
		},
		Seeder: SeederConfig{
			DataDir:   getEnv("DATA_DIR", "data"),
			File:      getEnv("DATA_FILE", "cities.csv"),
			BatchSize: getEnvAsInt("SEEDER_BATCH_SIZE", 5000),
			Countries: getEnvAsSlice("DATA_COUNTRIES"),
			AutoSeed:  getEnvAsBool("SEEDER_AUTO", true),
		},
		Search: SearchConfig{
			FuzzySearchEnabled:   getEnvAsBool("FEATURE_FUZZY_SEARCH", defaults.FuzzySearchEnabled),
			LocationAwareEnabled: getEnvAsBool("FEATURE_LOCATION_AWARE", defaults.LocationAwareEnabled),
			MemoryCachingEnabled: getEnvAsBool("FEATURE_MEMORY_CACHING", defaults.MemoryCachingEnabled),
			AdvancedDBEnabled:    getEnvAsBool("FEATURE_ADVANCED_DB", defaults.AdvancedDBEnabled),
			FuzzyThreshold:       getEnvAsInt("SEARCH_FUZZY_THRESHOLD", defaults.FuzzyThreshold),
			DistanceWeight:       getEnvAsFloat("SEARCH_DISTANCE_WEIGHT", defaults.DistanceWeight),
			CountryBoost:         getEnvAsFloat("SEARCH_COUNTRY_BOOST", defaults.CountryBoost),
			CacheSize:            getEnvAsInt("SEARCH_CACHE_SIZE", defaults.CacheSize),
			CacheTTL:             getEnvAsDuration("SEARCH_CACHE_TTL", defaults.CacheTTL),
			DefaultLimit:         getEnvAsInt("SEARCH_DEFAULT_LIMIT", defaults.DefaultLimit),
			MaxLimit:             getEnvAsInt("SEARCH_MAX_LIMIT", defaults.MaxLimit),
			MaxCandidates:        getEnvAsInt("SEARCH_MAX_CANDIDATES", defaults.MaxCandidates),
			MinQueryLength:       getEnvAsInt("SEARCH_MIN_QUERY_LENGTH", defaults.MinQueryLength),
			MaxRadiusKm:          getEnvAsFloat("SEARCH_MAX_RADIUS_KM", defaults.MaxRadiusKm),
		},
	}

	config.ResolveMode()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ResolveMode applies the mode once; simple mode switches fuzzy search and
// advanced database features off whatever their individual flags say.
func (c *Config) ResolveMode() {
	if c.Mode == ModeSimple {
		c.Search.FuzzySearchEnabled = false
		c.Search.AdvancedDBEnabled = false
	}
}

// Validate checks tunables that have no sensible fallback
func (c *Config) Validate() error {
	s := c.Search
	if s.FuzzyThreshold < 0 || s.FuzzyThreshold > 100 {
		return fmt.Errorf("SEARCH_FUZZY_THRESHOLD must be within 0-100, got %d", s.FuzzyThreshold)
	}
	if s.DistanceWeight < 0 || s.DistanceWeight > 1 {
		return fmt.Errorf("SEARCH_DISTANCE_WEIGHT must be within 0-1, got %g", s.DistanceWeight)
	}
	if s.MaxLimit < 1 || s.DefaultLimit < 1 || s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("invalid result limits: default %d, max %d", s.DefaultLimit, s.MaxLimit)
	}
	if s.MaxCandidates < s.MaxLimit {
		return fmt.Errorf("SEARCH_MAX_CANDIDATES (%d) must not be below SEARCH_MAX_LIMIT (%d)", s.MaxCandidates, s.MaxLimit)
	}
	if s.MemoryCachingEnabled && (s.CacheSize <= 0 || s.CacheTTL <= 0) {
		return fmt.Errorf("cache size and ttl must be positive when caching is enabled")
	}
	if s.MaxRadiusKm <= 0 {
		return fmt.Errorf("SEARCH_MAX_RADIUS_KM must be positive, got %g", s.MaxRadiusKm)
	}
	if c.DB.Pool.MaxOpen < 1 || c.DB.Pool.Timeout <= 0 {
		return fmt.Errorf("invalid pool settings: max open %d, timeout %s", c.DB.Pool.MaxOpen, c.DB.Pool.Timeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
