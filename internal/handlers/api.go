package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
)

type APIHandler struct {
	health interfaces.HealthChecker
	logger arbor.ILogger
}

// NewAPIHandler creates the version and health handler. health may be nil.
func NewAPIHandler(health interfaces.HealthChecker, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		health: health,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"full":    common.GetFullVersion(),
	})
}

// HealthHandler returns the local service status together with the OCR backend's
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	resp := map[string]interface{}{
		"status": "ok",
	}

	if h.health != nil {
		status, err := h.health.Health(r.Context())
		if err != nil {
			h.logger.Debug().Err(err).Msg("OCR health check failed")
			resp["ocr"] = "offline"
			resp["ocr_error"] = err.Error()
		} else if status.Healthy() {
			resp["ocr"] = "online"
		} else {
			resp["ocr"] = "offline"
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
