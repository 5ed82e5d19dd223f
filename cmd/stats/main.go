package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/database"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/repository"
	"github.com/alexivanou/geoquery/internal/service"
	"github.com/alexivanou/geoquery/internal/stats"
	"go.uber.org/zap"
)

func main() {
	var (
		format  = flag.String("format", getenv("OUTPUT_FORMAT", "json"), "Output format: json or text")
		queries = flag.String("queries", "", "Comma-separated searches to run twice before collecting, to exercise the result cache")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repos := repository.NewRepositories(db, cfg.DB.Type, cfg.Search.AdvancedDBEnabled)
	svc, err := service.NewService(repos.City, cfg.Search, cfg.DB.Pool.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to create service", zap.Error(err))
	}

	var timings []queryTiming
	if *queries != "" {
		timings = runQueries(ctx, svc, strings.Split(*queries, ","), logger)
	}

	logger.Info("Collecting statistics...", zap.String("db_type", string(cfg.DB.Type)))
	statistics, err := stats.NewCollector(db, cfg.DB, svc).Collect(ctx)
	if err != nil {
		logger.Fatal("Failed to collect statistics", zap.Error(err))
	}

	if err := render(os.Stdout, *format, statistics, timings); err != nil {
		logger.Fatal("Failed to render statistics", zap.Error(err))
	}
}

// queryTiming compares a cold search with the same search served again
type queryTiming struct {
	Query   string        `json:"query"`
	Results int           `json:"results"`
	Cold    time.Duration `json:"cold_ns"`
	Warm    time.Duration `json:"warm_ns"`
}

func runQueries(ctx context.Context, svc service.ServiceInterface, queries []string, logger *zap.Logger) []queryTiming {
	var timings []queryTiming
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		start := time.Now()
		results, err := svc.Search(ctx, model.SearchQuery{Text: q})
		if err != nil {
			logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		cold := time.Since(start)

		start = time.Now()
		if _, err := svc.Search(ctx, model.SearchQuery{Text: q}); err != nil {
			logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		timings = append(timings, queryTiming{Query: q, Results: len(results), Cold: cold, Warm: time.Since(start)})
	}
	return timings
}

func render(w io.Writer, format string, s *stats.Stats, timings []queryTiming) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			*stats.Stats
			Queries []queryTiming `json:"queries,omitempty"`
		}{s, timings})
	case "text", "human":
		return printHumanReadable(w, s, timings)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printHumanReadable(out io.Writer, s *stats.Stats, timings []queryTiming) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	section := func(title string) { fmt.Fprintf(w, "\n--- %s ---\n", title) }

	fmt.Fprintf(w, "geoquery statistics at %s\n", s.Timestamp.Format(time.RFC3339))

	section("Backend")
	fmt.Fprintf(w, "Type:\t%s\n", s.Database.Type)
	if caps := s.Database.Capabilities; caps != nil {
		fmt.Fprintf(w, "Spatial index:\t%s\n", yesNo(caps.SpatialIndex))
		fmt.Fprintf(w, "Trigram index:\t%s\n", yesNo(caps.TrigramIndex))
	}
	fmt.Fprintf(w, "Cities:\t%d\n", s.Database.TotalRecords)
	fmt.Fprintf(w, "Countries / states:\t%d / %d\n", s.Database.Countries, s.Database.States)
	if s.Database.SizeBytes > 0 {
		fmt.Fprintf(w, "Size:\t%s\n", formatBytes(uint64(s.Database.SizeBytes)))
	}
	p := s.Database.Pool
	fmt.Fprintf(w, "Pool:\t%d open, %d in use, %d idle (max %d, %d waits)\n", p.Open, p.InUse, p.Idle, p.MaxOpen, p.WaitCount)

	section("Result cache")
	if c := s.Cache; c != nil {
		fmt.Fprintf(w, "Entries:\t%d / %d (ttl %s)\n", c.Len, c.Capacity, time.Duration(c.TTLSeconds)*time.Second)
		fmt.Fprintf(w, "Hits / misses:\t%d / %d (%s hit rate)\n", c.Hits, c.Misses, hitRate(c.Hits, c.Misses))
		fmt.Fprintf(w, "Evictions / expirations:\t%d / %d\n", c.Evictions, c.Expirations)
	} else {
		fmt.Fprintln(w, "disabled")
	}

	if len(timings) > 0 {
		section("Searches")
		fmt.Fprintln(w, "QUERY\tRESULTS\tCOLD\tCACHED")
		for _, t := range timings {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Query, t.Results, t.Cold.Round(time.Microsecond), t.Warm.Round(time.Microsecond))
		}
	}

	section("Process")
	fmt.Fprintf(w, "Heap in use:\t%s\n", formatBytes(s.Memory.HeapInuse))
	fmt.Fprintf(w, "Goroutines:\t%d\n", s.Runtime.NumGoroutines)
	fmt.Fprintf(w, "Uptime:\t%ds\n", s.Runtime.UptimeSeconds)

	return w.Flush()
}

func hitRate(hits, misses int64) string {
	if hits+misses == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(hits)*100/float64(hits+misses))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
