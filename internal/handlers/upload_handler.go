package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/uploads"
)

// maxUploadMemory is the multipart memory budget; larger parts spill to temp files.
const maxUploadMemory = 32 << 20

// UploadQueueResponse is the body of GET /api/uploads.
type UploadQueueResponse struct {
	Items       []models.UploadItem `json:"items"`
	UseAdvanced bool                `json:"use_advanced"`
}

type UploadHandler struct {
	queue  UploadQueue
	logger arbor.ILogger
}

func NewUploadHandler(queue UploadQueue, logger arbor.ILogger) *UploadHandler {
	return &UploadHandler{
		queue:  queue,
		logger: logger,
	}
}

// ListHandler returns every queued item in enqueue order
func (h *UploadHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	h.writeQueue(w)
}

func (h *UploadHandler) writeQueue(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, UploadQueueResponse{
		Items:       h.queue.Items(),
		UseAdvanced: h.queue.UseAdvanced(),
	})
}

// AddHandler enqueues the multipart "files" parts of the request
func (h *UploadHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteError(w, http.StatusBadRequest, "No files provided")
		return
	}

	files := make([]models.LocalFile, 0, len(headers))
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Failed to read "+header.Filename)
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Failed to read "+header.Filename)
			return
		}
		files = append(files, uploads.LocalFileFromBytes(header.Filename, data))
	}

	if raw := r.FormValue("use_advanced"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			h.queue.SetUseAdvanced(enabled)
		}
	}

	added := h.queue.Enqueue(files...)
	h.logger.Info().Int("count", len(added)).Msg("Files added to upload queue")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"added":  added,
	})
}

// ProcessHandler uploads every pending item, one at a time or as one batch (?batch=true)
func (h *UploadHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if r.URL.Query().Has("advanced") {
		h.queue.SetUseAdvanced(boolQuery(r, "advanced", h.queue.UseAdvanced()))
	}

	var (
		summary uploads.Summary
		err     error
	)
	if boolQuery(r, "batch", false) {
		summary, err = h.queue.ProcessBatch(r.Context())
	} else {
		summary, err = h.queue.ProcessAll(r.Context())
	}

	resp := map[string]interface{}{
		"status":    "success",
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"items":     h.queue.Items(),
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("Upload processing stopped early")
		resp["status"] = "error"
		resp["error"] = err.Error()
	}

	WriteJSON(w, http.StatusOK, resp)
}

// ClearHandler empties the queue
func (h *UploadHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	h.queue.ClearAll()
	WriteSuccess(w, "Upload queue cleared")
}

// RemoveHandler removes one pending item by its queue index
func (h *UploadHandler) RemoveHandler(w http.ResponseWriter, r *http.Request, rawIndex string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		WriteError(w, http.StatusBadRequest, "Invalid queue index")
		return
	}

	if !h.queue.Remove(index) {
		WriteError(w, http.StatusConflict, "Only pending items can be removed")
		return
	}

	h.writeQueue(w)
}
