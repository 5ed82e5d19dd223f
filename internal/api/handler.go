package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	service service.ServiceInterface
	logger  *zap.Logger
}

// NewHandler creates a new handler instance
func NewHandler(service service.ServiceInterface, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Search handles GET /api/v1/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	text := params.Get("q")
	if strings.TrimSpace(text) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if limitStr := params.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
	}

	query := model.SearchQuery{
		Text:        text,
		Country:     params.Get("country"),
		UserCountry: params.Get("user_country"),
		Limit:       limit,
	}

	latStr, lngStr := params.Get("lat"), params.Get("lng")
	if latStr != "" || lngStr != "" {
		if latStr == "" || lngStr == "" {
			h.writeError(w, http.StatusBadRequest, "parameters 'lat' and 'lng' must be given together")
			return
		}
		lat, lng, ok := parseCoordinates(latStr, lngStr)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "invalid lat or lng parameter")
			return
		}
		query.UserLocation = &model.Coordinate{Lat: lat, Lng: lng}
	}

	results, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, "Error searching cities", err)
		return
	}

	h.writeJSON(w, http.StatusOK, model.SearchResponse{
		Query:   text,
		Count:   len(results),
		Results: nonNil(results),
	})
}

// GetCity handles GET /api/v1/city/{id}
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid city id")
		return
	}

	city, err := h.service.GetCityByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Error getting city", err)
		return
	}

	if city == nil {
		h.writeServiceError(w, "City not found", model.ErrNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, city)
}

// Nearby handles GET /api/v1/nearby
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	latStr := params.Get("lat")
	lngStr := params.Get("lng")

	if latStr == "" || lngStr == "" {
		h.writeError(w, http.StatusBadRequest, "parameters 'lat' and 'lng' are required")
		return
	}

	lat, lng, ok := parseCoordinates(latStr, lngStr)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid lat or lng parameter")
		return
	}

	radius := 0.0
	if radiusStr := params.Get("radius"); radiusStr != "" {
		var err error
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil || radius <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid radius parameter")
			return
		}
	}

	candidates, err := h.service.GetCitiesByCoordinates(r.Context(), lat, lng, radius)
	if err != nil {
		h.writeServiceError(w, "Error finding nearby cities", err)
		return
	}

	if radius == 0 {
		radius = service.DefaultRadiusKm
	}
	results := make([]model.NearbyCity, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, model.NearbyCity{City: c.City, DistanceKm: c.DistanceKm})
	}

	h.writeJSON(w, http.StatusOK, model.NearbyResponse{
		RequestCoordinates: model.Coordinate{Lat: lat, Lng: lng},
		RadiusKm:           radius,
		Count:              len(results),
		Results:            results,
	})
}

// ListCountries handles GET /api/v1/countries
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.service.GetCountries(r.Context())
	if err != nil {
		h.writeServiceError(w, "Error listing countries", err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.NamesResponse{Count: len(countries), Results: nonNil(countries)})
}

// ListStates handles GET /api/v1/countries/{country}/states
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.service.GetStates(r.Context(), mux.Vars(r)["country"])
	if err != nil {
		h.writeServiceError(w, "Error listing states", err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.NamesResponse{Count: len(states), Results: nonNil(states)})
}

// ListCitiesInState handles GET /api/v1/countries/{country}/states/{state}/cities
func (h *Handler) ListCitiesInState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cities, err := h.service.GetCitiesInState(r.Context(), vars["state"], vars["country"])
	if err != nil {
		h.writeServiceError(w, "Error listing cities in state", err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.CitiesResponse{Count: len(cities), Results: nonNil(cities)})
}

// InvalidateCache handles DELETE /api/v1/cache
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func parseCoordinates(latStr, lngStr string) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidQuery), errors.Is(err, model.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.Int("status", status))
	}

	var text string
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		text = err.Error()
	case http.StatusGatewayTimeout:
		text = "database timeout"
	case http.StatusServiceUnavailable:
		text = "database unavailable"
	default:
		text = "internal server error"
	}
	if status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
		w.Header().Set("Retry-After", "1")
	}
	h.writeError(w, status, text)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, h.logger, status, model.ErrorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, h.logger, status, v)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", zap.Error(err))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
