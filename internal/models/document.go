package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DocumentStatus is the processing state of a document as seen by the dashboard.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// AllDocumentStatuses lists the closed set of statuses in display order.
var AllDocumentStatuses = []DocumentStatus{StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed}

// ParseDocumentStatus normalizes a backend status string.
// Unknown or empty values map to StatusUploaded.
func ParseDocumentStatus(s string) DocumentStatus {
	switch DocumentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusProcessing:
		return StatusProcessing
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusUploaded
	}
}

// Valid reports whether s is one of the four enumerated statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// UnmarshalJSON normalizes the status so that an out-of-enum value is never observed.
func (s *DocumentStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = StatusUploaded
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = ParseDocumentStatus(raw)
	return nil
}

// localTransitions are the status changes the client may apply on its own.
// Server snapshots bypass this table.
var localTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusUploaded},
	StatusFailed:     {StatusUploaded},
}

// CanTransition reports whether the client may move a record from one status to another.
// processing->uploaded and failed->uploaded are the rollback edges.
func CanTransition(from, to DocumentStatus) bool {
	for _, allowed := range localTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DocumentID is the backend's opaque document identifier.
// The backend sends integers; strings are accepted as well.
type DocumentID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *DocumentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("document id: %w", err)
		}
		*id = DocumentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	*id = DocumentID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers so round trips to the backend keep their type.
func (id DocumentID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id DocumentID) String() string {
	return string(id)
}

// DocumentRecord is one row of the document list.
type DocumentRecord struct {
	ID             DocumentID     `json:"id" validate:"required"`
	Filename       string         `json:"filename" validate:"required"`
	FileType       string         `json:"file_type"`
	Status         DocumentStatus `json:"status"`
	DocumentType   string         `json:"document_type,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
	PageCount      *int           `json:"page_count,omitempty" validate:"omitempty,gte=0"`
	WordCount      *int           `json:"word_count,omitempty" validate:"omitempty,gte=0"`
	CreatedAt      *Timestamp     `json:"created_at,omitempty"`
	UploadedAt     *Timestamp     `json:"uploaded_at,omitempty"`
}

// Timestamp returns the upload time, falling back to the creation time.
func (d DocumentRecord) Timestamp() (time.Time, bool) {
	if d.UploadedAt != nil && !d.UploadedAt.IsZero() {
		return d.UploadedAt.Time, true
	}
	if d.CreatedAt != nil && !d.CreatedAt.IsZero() {
		return d.CreatedAt.Time, true
	}
	return time.Time{}, false
}

// Extension returns the lower-case file extension without the dot,
// preferring the declared file type over the filename.
func (d DocumentRecord) Extension() string {
	if ft := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d.FileType)), "."); ft != "" {
		return ft
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Filename)), ".")
}

// RequiresExtraction reports whether the record's format needs remote OCR extraction.
func (d DocumentRecord) RequiresExtraction() bool {
	_, ok := extractableTypes[d.Extension()]
	return ok
}

var extractableTypes = map[string]struct{}{
	"pdf": {},
}

// Clone returns a deep copy so callers never share pointers with the registry.
func (d DocumentRecord) Clone() DocumentRecord {
	out := d
	if d.Confidence != nil {
		v := *d.Confidence
		out.Confidence = &v
	}
	if d.PageCount != nil {
		v := *d.PageCount
		out.PageCount = &v
	}
	if d.WordCount != nil {
		v := *d.WordCount
		out.WordCount = &v
	}
	if d.CreatedAt != nil {
		v := *d.CreatedAt
		out.CreatedAt = &v
	}
	if d.UploadedAt != nil {
		v := *d.UploadedAt
		out.UploadedAt = &v
	}
	return out
}

// DocumentDetail is the full view of one document, fetched on demand.
type DocumentDetail struct {
	ID             DocumentID             `json:"id" validate:"required"`
	Filename       string                 `json:"filename"`
	ExtractedText  string                 `json:"extracted_text,omitempty"`
	WordCount      int                    `json:"word_count" validate:"gte=0"`
	Confidence     float64                `json:"confidence" validate:"gte=0,lte=100"`
	ProcessingTime float64                `json:"processing_time" validate:"gte=0"`
	FileSize       string                 `json:"file_size,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// noTextPlaceholder is what the backend returns in place of missing extracted text.
const noTextPlaceholder = "No text extracted yet."

// HasText reports whether the backend returned any extracted text.
func (d *DocumentDetail) HasText() bool {
	if d == nil {
		return false
	}
	text := strings.TrimSpace(d.ExtractedText)
	return text != "" && text != noTextPlaceholder
}

// MetadataString returns a metadata value rendered as a string, or "" when absent.
func (d *DocumentDetail) MetadataString(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// EntityBundle is the categorized named-entity output for a document.
// A nil bundle means entities were not computed.
type EntityBundle struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Locations     []string `json:"locations"`
	Money         []string `json:"money"`
}

// EntityCategory pairs a display label with its values.
type EntityCategory struct {
	Name   string
	Values []string
}

// Categories returns the non-empty categories in a fixed order.
func (e *EntityBundle) Categories() []EntityCategory {
	if e == nil {
		return nil
	}
	all := []EntityCategory{
		{Name: "Persons", Values: e.Persons},
		{Name: "Organizations", Values: e.Organizations},
		{Name: "Dates", Values: e.Dates},
		{Name: "Locations", Values: e.Locations},
		{Name: "Money", Values: e.Money},
	}
	out := all[:0]
	for _, c := range all {
		if len(c.Values) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether every category is empty.
func (e *EntityBundle) Empty() bool {
	return len(e.Categories()) == 0
}

// Dedupe removes duplicate values within each category, keeping first occurrence.
func (e *EntityBundle) Dedupe() {
	if e == nil {
		return
	}
	e.Persons = dedupe(e.Persons)
	e.Organizations = dedupe(e.Organizations)
	e.Dates = dedupe(e.Dates)
	e.Locations = dedupe(e.Locations)
	e.Money = dedupe(e.Money)
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
