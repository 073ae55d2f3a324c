package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
	"github.com/ternarybob/docintel/internal/services/uploads"
	"github.com/ternarybob/docintel/internal/services/viewer"
)

// DocumentRegistry is the registry surface served over the local API.
type DocumentRegistry interface {
	Documents() []models.DocumentRecord
	Search(term string) []models.DocumentRecord
	IsProcessing(id models.DocumentID) bool
	LastRefresh() (time.Time, bool)
	Refresh(ctx context.Context) error
	Process(ctx context.Context, id models.DocumentID) error
	ProcessAllUploaded(ctx context.Context) (int, error)
	Delete(ctx context.Context, id models.DocumentID) error
	Export(ctx context.Context, id models.DocumentID, format string) (export.Artifact, error)
	AutoRefreshEnabled() bool
	SetAutoRefresh(enabled bool) error
}

// DocumentOpener opens a document detail session.
type DocumentOpener interface {
	Open(ctx context.Context, id models.DocumentID) (*viewer.Session, error)
}

// UploadQueue is the upload queue surface served over the local API.
type UploadQueue interface {
	Enqueue(files ...models.LocalFile) []models.UploadItem
	Items() []models.UploadItem
	Remove(index int) bool
	ClearAll()
	UseAdvanced() bool
	SetUseAdvanced(enabled bool)
	ProcessAll(ctx context.Context) (uploads.Summary, error)
	ProcessBatch(ctx context.Context) (uploads.Summary, error)
}

// StatsSource computes dashboard counters.
type StatsSource interface {
	Overview(ctx context.Context) (*models.DashboardStats, error)
}
