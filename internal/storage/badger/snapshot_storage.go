package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
)

const snapshotMetaKey = "snapshot_meta"

// cachedDocument is one record of the stored snapshot
type cachedDocument struct {
	ID       string `badgerhold:"key"`
	Position int
	Status   models.DocumentStatus `badgerholdIndex:"Status"`
	Record   models.DocumentRecord
}

// snapshotMeta records when the stored snapshot was fetched
type snapshotMeta struct {
	FetchedAt time.Time
	Count     int
}

// SnapshotStorage implements SnapshotStorage for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

// SaveSnapshot replaces the stored snapshot in one transaction
func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snapshot *models.DocumentSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxDeleteMatching(tx, &cachedDocument{}, badgerhold.Where("Position").Ge(0)); err != nil {
			return fmt.Errorf("failed to clear cached documents: %w", err)
		}

		for i, record := range snapshot.Documents {
			doc := &cachedDocument{
				ID:       record.ID.String(),
				Position: i,
				Status:   record.Status,
				Record:   record,
			}
			if err := store.TxUpsert(tx, doc.ID, doc); err != nil {
				return fmt.Errorf("failed to cache document %s: %w", doc.ID, err)
			}
		}

		meta := &snapshotMeta{FetchedAt: snapshot.FetchedAt, Count: len(snapshot.Documents)}
		if err := store.TxUpsert(tx, snapshotMetaKey, meta); err != nil {
			return fmt.Errorf("failed to save snapshot metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Trace().
		Int("documents", len(snapshot.Documents)).
		Msg("Document snapshot cached")

	return nil
}

// LoadSnapshot returns the stored snapshot, or nil when none exists
func (s *SnapshotStorage) LoadSnapshot(ctx context.Context) (*models.DocumentSnapshot, error) {
	var meta snapshotMeta
	err := s.db.Store().Get(snapshotMetaKey, &meta)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot metadata: %w", err)
	}

	var docs []cachedDocument
	if err := s.db.Store().Find(&docs, (&badgerhold.Query{}).SortBy("Position")); err != nil {
		return nil, fmt.Errorf("failed to load cached documents: %w", err)
	}

	snapshot := &models.DocumentSnapshot{
		Documents: make([]models.DocumentRecord, 0, len(docs)),
		FetchedAt: meta.FetchedAt,
	}
	for _, doc := range docs {
		snapshot.Documents = append(snapshot.Documents, doc.Record)
	}

	return snapshot, nil
}

// FindByStatus returns stored records with the given status in snapshot order
func (s *SnapshotStorage) FindByStatus(ctx context.Context, status models.DocumentStatus) ([]models.DocumentRecord, error) {
	var docs []cachedDocument
	query := badgerhold.Where("Status").Eq(status).Index("Status").SortBy("Position")
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to query cached documents: %w", err)
	}

	records := make([]models.DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.Record)
	}
	return records, nil
}

// ClearSnapshot removes every stored record
func (s *SnapshotStorage) ClearSnapshot(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&cachedDocument{}, badgerhold.Where("Position").Ge(0)); err != nil {
		return fmt.Errorf("failed to clear cached documents: %w", err)
	}
	if err := s.db.Store().Delete(snapshotMetaKey, &snapshotMeta{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to clear snapshot metadata: %w", err)
	}
	return nil
}

// Close releases the underlying store
func (s *SnapshotStorage) Close() error {
	return s.db.Close()
}
