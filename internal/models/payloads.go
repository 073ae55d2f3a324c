package models

import "time"

// DocumentList is the response of GET /api/v1/documents.
type DocumentList struct {
	Documents []DocumentRecord `json:"documents" validate:"dive"`
	Total     int              `json:"total"`
	Skip      int              `json:"skip"`
	Limit     int              `json:"limit"`
}

// EntityResponse is the response of GET /api/v1/documents/{id}/entities.
type EntityResponse struct {
	DocumentID DocumentID    `json:"document_id,omitempty"`
	Entities   *EntityBundle `json:"entities"`
}

// ProcessResponse is returned by the upload endpoint and inside batch results.
type ProcessResponse struct {
	DocumentID     DocumentID     `json:"document_id"`
	Filename       string         `json:"filename"`
	Success        bool           `json:"success"`
	Status         DocumentStatus `json:"status,omitempty"`
	Message        string         `json:"message,omitempty"`
	Size           int64          `json:"size,omitempty" validate:"gte=0"`
	PageCount      int            `json:"page_count" validate:"gte=0"`
	Confidence     float64        `json:"confidence" validate:"gte=0,lte=100"`
	TextLength     int            `json:"text_length" validate:"gte=0"`
	DocumentType   string         `json:"document_type,omitempty"`
	Classification string         `json:"classification,omitempty"`
	WordCount      int            `json:"word_count" validate:"gte=0"`
	CharCount      int            `json:"char_count" validate:"gte=0"`
}

// BatchResponse is the response of POST /api/ocr/batch.
type BatchResponse struct {
	Total      int               `json:"total" validate:"gte=0"`
	Successful int               `json:"successful" validate:"gte=0"`
	Failed     int               `json:"failed" validate:"gte=0"`
	Results    []ProcessResponse `json:"results" validate:"dive"`
}

// ExtractionResult is the response of POST /api/ocr/process.
type ExtractionResult struct {
	Status        string   `json:"status,omitempty"`
	FileID        string   `json:"file_id,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	WordCount     int      `json:"word_count" validate:"gte=0"`
	Confidence    *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
	ExtractedText string   `json:"extracted_text,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// HealthStatus is the response of GET /api/ocr/health.
type HealthStatus struct {
	Status       string `json:"status"`
	ProcessedDir string `json:"processed_dir,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// Healthy reports whether the backend declared itself healthy.
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy"
}

// DeleteResponse is the response of DELETE /api/v1/documents/{id}.
type DeleteResponse struct {
	Message    string     `json:"message,omitempty"`
	DocumentID DocumentID `json:"document_id,omitempty"`
}

// DocumentSnapshot is a persisted copy of the last good document list.
type DocumentSnapshot struct {
	Documents []DocumentRecord `json:"documents"`
	FetchedAt time.Time        `json:"fetched_at"`
}
