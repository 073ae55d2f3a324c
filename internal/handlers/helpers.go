package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/docintel/internal/apiclient"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteMethodNotAllowed(w, method)
		return false
	}
	return true
}

// WriteMethodNotAllowed writes a JSON 405 advertising the allowed methods.
func WriteMethodNotAllowed(w http.ResponseWriter, allowed ...string) error {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	return WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": message,
	})
}

// WriteArtifact streams an export artifact as a file download.
func WriteArtifact(w http.ResponseWriter, artifact export.Artifact) error {
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(artifact.Data)
	return err
}

// StatusForError maps the failure taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotReady),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrNoExtractedText):
		return http.StatusConflict
	case errors.Is(err, models.ErrNetworkFailure),
		errors.Is(err, models.ErrInvalidPayload),
		errors.Is(err, models.ErrDeleteFailed),
		errors.Is(err, models.ErrProcessingStartFailed),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status chosen by StatusForError.
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

// boolQuery parses a boolean query parameter, returning fallback when absent or malformed.
func boolQuery(r *http.Request, key string, fallback bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
