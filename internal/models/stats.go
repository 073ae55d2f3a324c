package models

import "time"

// DashboardStats are the summary counters derived from one document snapshot.
type DashboardStats struct {
	TotalDocuments    int                    `json:"total_documents"`
	ProcessedToday    int                    `json:"processed_today"`
	AverageConfidence float64                `json:"average_confidence"`
	ByStatus          map[DocumentStatus]int `json:"by_status"`
	OCROnline         *bool                  `json:"ocr_online,omitempty"`
	ComputedAt        time.Time              `json:"computed_at"`
}
