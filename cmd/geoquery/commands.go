package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/database"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/repository"
	"github.com/alexivanou/geoquery/internal/seeder"
	"github.com/alexivanou/geoquery/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the engine shared by all subcommands
type app struct {
	asJSON  bool
	verbose bool

	db  *sqlx.DB
	svc service.ServiceInterface
}

// newRootCmd builds the command tree; the caller closes the returned app once Execute returns
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "geoquery",
		Short:         "Query the city database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.searchCmd(),
		a.nearbyCmd(),
		a.cityCmd(),
		a.countriesCmd(),
		a.statesCmd(),
		a.citiesCmd(),
	)
	return root, a
}

func (a *app) open(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := zap.NewNop()
	if a.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx, cfg.DB); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repository.NewRepositories(db, cfg.DB.Type, cfg.Search.AdvancedDBEnabled)
	svc, err := service.NewService(repos.City, cfg.Search, cfg.DB.Pool.Timeout, logger)
	if err != nil {
		db.Close()
		return err
	}

	if cfg.Seeder.AutoSeed {
		parser := seeder.NewParser(cfg.Seeder, logger)
		if _, err := os.Stat(parser.Path()); err == nil {
			if _, err := seeder.New(parser, repos.City, logger).SeedIfEmpty(ctx); err != nil {
				db.Close()
				return fmt.Errorf("failed to import cities: %w", err)
			}
		}
	}

	a.db = db
	a.svc = svc
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.svc = nil, nil
	return err
}

func (a *app) searchCmd() *cobra.Command {
	var (
		q        model.SearchQuery
		lat, lng float64
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Ranked city search with fuzzy matching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Text = args[0]
			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if latSet {
				q.UserLocation = &model.Coordinate{Lat: lat, Lng: lng}
			}

			results, err := a.svc.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), model.SearchResponse{Query: q.Text, Count: len(results), Results: results})
			}

			w := newTable(cmd.OutOrStdout(), "ID", "NAME", "STATE", "COUNTRY", "TEXT", "LOCATION", "DISTANCE")
			for _, r := range results {
				dist := ""
				if r.DistanceKm != nil {
					dist = fmt.Sprintf("%.1f km", *r.DistanceKm)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
					r.City.ID, r.City.Name, deref(r.City.State), r.City.Country, r.TextScore, r.LocationScore, dist)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&q.Country, "country", "", "restrict results to a country name or ISO code")
	cmd.Flags().StringVar(&q.UserCountry, "user-country", "", "country of the user, boosts local results")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the user")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the user")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 0, "maximum number of results")
	return cmd
}

func (a *app) nearbyCmd() *cobra.Command {
	var radius float64
	cmd := &cobra.Command{
		Use:   "nearby <lat> <lng>",
		Short: "Cities within a radius of a point, nearest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}

			candidates, err := a.svc.GetCitiesByCoordinates(cmd.Context(), lat, lng, radius)
			if err != nil {
				return err
			}
			if a.asJSON {
				out := make([]model.NearbyCity, 0, len(candidates))
				for _, c := range candidates {
					out = append(out, model.NearbyCity{City: c.City, DistanceKm: c.DistanceKm})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := newTable(cmd.OutOrStdout(), "ID", "NAME", "STATE", "COUNTRY", "DISTANCE")
			for _, c := range candidates {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f km\n", c.ID, c.Name, deref(c.State), c.Country, c.DistanceKm)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64VarP(&radius, "radius", "r", service.DefaultRadiusKm, "search radius in kilometres")
	return cmd
}

func (a *app) cityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "city <id>",
		Short: "Show a single city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid city id %q", args[0])
			}
			city, err := a.svc.GetCityByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if city == nil {
				return fmt.Errorf("%w: city %d", model.ErrNotFound, id)
			}
			return writeJSON(cmd.OutOrStdout(), city)
		},
	}
}

func (a *app) countriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List all countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			countries, err := a.svc.GetCountries(cmd.Context())
			if err != nil {
				return err
			}
			return a.printNames(cmd.OutOrStdout(), countries)
		},
	}
}

func (a *app) statesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states <country>",
		Short: "List the states of a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := a.svc.GetStates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printNames(cmd.OutOrStdout(), states)
		},
	}
}

func (a *app) citiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities <country> <state>",
		Short: "List the cities of a state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cities, err := a.svc.GetCitiesInState(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), model.CitiesResponse{Count: len(cities), Results: cities})
			}
			w := newTable(cmd.OutOrStdout(), "ID", "NAME", "POPULATION")
			for _, c := range cities {
				pop := ""
				if c.Population != nil {
					pop = strconv.FormatInt(*c.Population, 10)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, pop)
			}
			return w.Flush()
		},
	}
}

func (a *app) printNames(out io.Writer, names []string) error {
	if a.asJSON {
		if names == nil {
			names = []string{}
		}
		return writeJSON(out, model.NamesResponse{Count: len(names), Results: names})
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func newTable(out io.Writer, headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, h)
	}
	fmt.Fprintln(w)
	return w
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
