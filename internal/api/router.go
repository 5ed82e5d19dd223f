package api

import (
	"net/http"
	"time"

	"github.com/alexivanou/geoquery/internal/service"
	"github.com/alexivanou/geoquery/internal/stats"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter creates a new HTTP router
func NewRouter(service service.ServiceInterface, statsCollector *stats.Collector, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := NewHandler(service, logger)
	statsHandler := NewStatsHandler(statsCollector, logger)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/search", handler.Search).Methods("GET")
	v1.HandleFunc("/city/{id}", handler.GetCity).Methods("GET")
	v1.HandleFunc("/nearby", handler.Nearby).Methods("GET")
	v1.HandleFunc("/countries", handler.ListCountries).Methods("GET")
	v1.HandleFunc("/countries/{country}/states", handler.ListStates).Methods("GET")
	v1.HandleFunc("/countries/{country}/states/{state}/cities", handler.ListCitiesInState).Methods("GET")
	v1.HandleFunc("/cache", handler.InvalidateCache).Methods("DELETE")
	if statsCollector != nil {
		v1.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")
	}

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
