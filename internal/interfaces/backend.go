package interfaces

import (
	"context"

	"github.com/ternarybob/docintel/internal/models"
)

// DocumentReader fetches documents from the OCR backend
type DocumentReader interface {
	ListDocuments(ctx context.Context, limit int) (*models.DocumentList, error)
	GetDocument(ctx context.Context, id models.DocumentID) (*models.DocumentDetail, error)
	GetEntities(ctx context.Context, id models.DocumentID) (*models.EntityBundle, error)
}

// DocumentBackend is the backend surface the document registry drives
type DocumentBackend interface {
	DocumentReader

	// DownloadDocument returns the raw uploaded artifact
	DownloadDocument(ctx context.Context, id models.DocumentID) ([]byte, error)

	// DeleteDocument removes a document on the backend
	DeleteDocument(ctx context.Context, id models.DocumentID) error

	// StartProcessing asks the backend to process a document asynchronously
	StartProcessing(ctx context.Context, id models.DocumentID) error

	// ExtractText submits file content to the extraction endpoint
	ExtractText(ctx context.Context, filename string, data []byte) (*models.ExtractionResult, error)
}

// UploadBackend receives local files
type UploadBackend interface {
	UploadDocument(ctx context.Context, file models.LocalFile, useAdvanced bool) (*models.ProcessResponse, error)
	BatchUpload(ctx context.Context, files []models.LocalFile, useAdvanced bool) (*models.BatchResponse, error)
}

// HealthChecker reports backend liveness
type HealthChecker interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
}
