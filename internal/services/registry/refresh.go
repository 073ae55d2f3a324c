package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
)

// Refresh fetches the full list and replaces the local sequence.
// Responses older than an already applied one are discarded. On failure the
// existing list is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	list, err := r.backend.ListDocuments(ctx, r.config.ListLimit)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to refresh documents")
		r.publish(interfaces.EventRefreshFailed, events.Notification{
			Level:   events.LevelError,
			Message: "Failed to fetch documents",
			Error:   err.Error(),
		})
		return fmt.Errorf("refresh documents: %w", err)
	}

	if !r.apply(seq, list.Documents) {
		r.logger.Debug().Int64("seq", int64(seq)).Msg("Discarded stale document snapshot")
		return nil
	}

	r.logger.Trace().Int64("seq", int64(seq)).Int("count", len(list.Documents)).Msg("Document snapshot applied")
	r.saveSnapshot(ctx, seq)
	r.publish(interfaces.EventSnapshotUpdated, events.Notification{
		Level:   events.LevelInfo,
		Message: fmt.Sprintf("%d documents", len(list.Documents)),
	})
	return nil
}

// apply installs a snapshot if seq is newer than the last applied one.
func (r *Registry) apply(seq uint64, snapshot []models.DocumentRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq <= r.applied {
		return false
	}
	r.applied = seq

	next := r.reconcile(snapshot)
	r.documents = next
	r.lastRefresh = time.Now()
	r.fromCache = false
	return true
}

// reconcile merges a server snapshot with in-flight local state. Caller holds mu.
//
// For ids in the processing set the optimistic local record wins while the
// server still reports uploaded or omits the id. In server mode a snapshot
// showing progress is accepted and the id leaves the processing set. In
// extract mode the transition handler owns the record until it finishes.
func (r *Registry) reconcile(snapshot []models.DocumentRecord) []models.DocumentRecord {
	next := make([]models.DocumentRecord, 0, len(snapshot)+len(r.processing))
	seen := make(map[models.DocumentID]struct{}, len(snapshot))

	for _, incoming := range snapshot {
		incoming = incoming.Clone()
		incoming.Status = models.ParseDocumentStatus(string(incoming.Status))
		seen[incoming.ID] = struct{}{}

		if _, inFlight := r.processing[incoming.ID]; inFlight {
			if local := r.indexOf(incoming.ID); local >= 0 {
				keepLocal := incoming.Status == models.StatusUploaded ||
					r.config.ProcessMode != common.ProcessModeServer
				if keepLocal {
					next = append(next, r.documents[local])
					continue
				}
			}
			delete(r.processing, incoming.ID)
		}
		next = append(next, incoming)
	}

	for _, local := range r.documents {
		if _, inFlight := r.processing[local.ID]; !inFlight {
			continue
		}
		if _, ok := seen[local.ID]; !ok {
			next = append(next, local)
		}
	}

	return next
}

func (r *Registry) saveSnapshot(ctx context.Context, seq uint64) {
	if r.cache == nil {
		return
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if seq < r.savedSeq {
		return
	}

	r.mu.RLock()
	snapshot := &models.DocumentSnapshot{
		Documents: cloneRecords(r.documents),
		FetchedAt: r.lastRefresh,
	}
	r.mu.RUnlock()

	if err := r.cache.SaveSnapshot(ctx, snapshot); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to save document snapshot")
		return
	}
	r.savedSeq = seq
}

// LoadCached installs the cached snapshot when no live snapshot has been applied yet.
// It reports whether cached documents were loaded.
func (r *Registry) LoadCached(ctx context.Context) (bool, error) {
	if r.cache == nil {
		return false, nil
	}

	snapshot, err := r.cache.LoadSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("load cached snapshot: %w", err)
	}
	if snapshot == nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied > 0 {
		return false, nil
	}

	r.documents = cloneRecords(snapshot.Documents)
	for i := range r.documents {
		r.documents[i].Status = models.ParseDocumentStatus(string(r.documents[i].Status))
	}
	r.lastRefresh = snapshot.FetchedAt
	r.fromCache = true

	r.logger.Info().
		Int("count", len(r.documents)).
		Str("fetched_at", snapshot.FetchedAt.Format(time.RFC3339)).
		Msg("Loaded cached document snapshot")
	return true, nil
}
