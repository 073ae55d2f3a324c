package interfaces

import (
	"context"

	"github.com/ternarybob/docintel/internal/models"
)

// SnapshotStorage persists the last good document list so the registry can
// start with stale data when the backend is unreachable
type SnapshotStorage interface {
	// SaveSnapshot replaces the stored snapshot
	SaveSnapshot(ctx context.Context, snapshot *models.DocumentSnapshot) error

	// LoadSnapshot returns the stored snapshot, or nil when none exists
	LoadSnapshot(ctx context.Context) (*models.DocumentSnapshot, error)

	// FindByStatus returns stored records with the given status in snapshot order
	FindByStatus(ctx context.Context, status models.DocumentStatus) ([]models.DocumentRecord, error)

	// ClearSnapshot removes every stored record
	ClearSnapshot(ctx context.Context) error

	// Close releases the underlying store
	Close() error
}
