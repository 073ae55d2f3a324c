package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
)

// DocumentView is a registry record annotated with its in-flight flag.
type DocumentView struct {
	models.DocumentRecord
	Processing bool `json:"processing"`
}

// DocumentListResponse is the body of GET /api/documents.
type DocumentListResponse struct {
	Documents   []DocumentView `json:"documents"`
	Total       int            `json:"total"`
	LastRefresh *time.Time     `json:"last_refresh,omitempty"`
	FromCache   bool           `json:"from_cache"`
}

type DocumentHandler struct {
	registry DocumentRegistry
	viewer   DocumentOpener
	logger   arbor.ILogger
}

func NewDocumentHandler(registry DocumentRegistry, viewer DocumentOpener, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		registry: registry,
		viewer:   viewer,
		logger:   logger,
	}
}

// ListHandler returns the registry snapshot, optionally filtered by ?q=
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	h.writeList(w, strings.TrimSpace(r.URL.Query().Get("q")))
}

func (h *DocumentHandler) writeList(w http.ResponseWriter, query string) {
	var records []models.DocumentRecord
	if query != "" {
		records = h.registry.Search(query)
	} else {
		records = h.registry.Documents()
	}

	views := make([]DocumentView, 0, len(records))
	for _, rec := range records {
		views = append(views, DocumentView{
			DocumentRecord: rec,
			Processing:     h.registry.IsProcessing(rec.ID),
		})
	}

	resp := DocumentListResponse{
		Documents: views,
		Total:     len(views),
	}
	if last, fromCache := h.registry.LastRefresh(); !last.IsZero() {
		resp.LastRefresh = &last
		resp.FromCache = fromCache
	}

	WriteJSON(w, http.StatusOK, resp)
}

// RefreshHandler re-fetches the document list from the backend
func (h *DocumentHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.registry.Refresh(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Refresh request failed")
		WriteServiceError(w, err)
		return
	}

	h.writeList(w, "")
}

// ProcessHandler starts processing of one uploaded document
func (h *DocumentHandler) ProcessHandler(w http.ResponseWriter, r *http.Request, id models.DocumentID) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.registry.Process(r.Context(), id); err != nil {
		h.logger.Warn().Err(err).Str("document_id", id.String()).Msg("Process request failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"document_id": id,
		"processing":  h.registry.IsProcessing(id),
	})
}

// ProcessAllHandler processes every uploaded document in sequence
func (h *DocumentHandler) ProcessAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	started, err := h.registry.ProcessAllUploaded(r.Context())
	resp := map[string]interface{}{
		"status":  "success",
		"started": started,
	}
	if err != nil {
		h.logger.Warn().Err(err).Int("started", started).Msg("Some documents failed to process")
		resp["status"] = "partial"
		resp["error"] = err.Error()
	}

	WriteJSON(w, http.StatusOK, resp)
}

// DeleteHandler deletes one document on the backend
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id models.DocumentID) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.logger.Warn().Err(err).Str("document_id", id.String()).Msg("Delete request failed")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Document deleted successfully")
}

// DownloadHandler returns an export artifact of a completed document (?format=txt|raw|csv|pdf)
func (h *DocumentHandler) DownloadHandler(w http.ResponseWriter, r *http.Request, id models.DocumentID) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatReport
	}

	artifact, err := h.registry.Export(r.Context(), id, format)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", id.String()).Str("format", format).Msg("Download request failed")
		WriteServiceError(w, err)
		return
	}

	if err := WriteArtifact(w, artifact); err != nil {
		h.logger.Warn().Err(err).Str("filename", artifact.Filename).Msg("Failed to write artifact")
	}
}

// ViewHandler opens the detail and entities of a completed document
func (h *DocumentHandler) ViewHandler(w http.ResponseWriter, r *http.Request, id models.DocumentID) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	session, err := h.viewer.Open(r.Context(), id)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", id.String()).Msg("View request failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, session)
}

// AutoRefreshHandler reads (GET) or toggles (PUT {"enabled":bool}) periodic refresh
func (h *DocumentHandler) AutoRefreshHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
			WriteError(w, http.StatusBadRequest, "Request body must be {\"enabled\": true|false}")
			return
		}
		if err := h.registry.SetAutoRefresh(*body.Enabled); err != nil {
			h.logger.Warn().Err(err).Bool("enabled", *body.Enabled).Msg("Failed to toggle auto-refresh")
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
	default:
		WriteMethodNotAllowed(w, http.MethodGet, http.MethodPut)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{
		"enabled": h.registry.AutoRefreshEnabled(),
	})
}
