package api

import (
	"net/http"

	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/stats"
	"go.uber.org/zap"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	collector *stats.Collector
	logger    *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(collector *stats.Collector, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{collector: collector, logger: logger}
}

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.collector.Collect(r.Context())
	if err != nil {
		h.logger.Error("Error collecting statistics", zap.Error(err))
		writeJSON(w, h.logger, http.StatusInternalServerError, model.ErrorResponse{Error: "failed to collect statistics"})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, s)
}
