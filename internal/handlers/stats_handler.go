package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// StatsHandler serves the dashboard counters
type StatsHandler struct {
	stats  StatsSource
	logger arbor.ILogger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsSource, logger arbor.ILogger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger,
	}
}

// GetStatsHandler handles GET /api/stats
func (h *StatsHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.stats.Overview(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute dashboard stats")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
