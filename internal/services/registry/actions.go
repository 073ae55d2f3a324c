package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
	"github.com/ternarybob/docintel/internal/services/export"
)

// Process starts processing an uploaded document. Any other status is
// rejected with ErrInvalidTransition before a request is made.
func (r *Registry) Process(ctx context.Context, id models.DocumentID) error {
	rec, err := r.beginProcessing(id)
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("document_id", id.String()).
		Str("filename", rec.Filename).
		Str("mode", r.config.ProcessMode).
		Msg("Processing document")

	if r.config.ProcessMode == common.ProcessModeServer {
		return r.startServerProcessing(ctx, rec)
	}
	return r.extract(ctx, rec)
}

// beginProcessing marks the record processing and adds it to the processing set.
func (r *Registry) beginProcessing(id models.DocumentID) (models.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return models.DocumentRecord{}, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	rec := r.documents[idx]
	if _, busy := r.processing[id]; busy || rec.Status != models.StatusUploaded {
		return models.DocumentRecord{}, fmt.Errorf("%w: document %s is %s", models.ErrInvalidTransition, id, rec.Status)
	}

	r.processing[id] = struct{}{}
	r.documents[idx].Status = models.StatusProcessing
	return r.documents[idx].Clone(), nil
}

// startServerProcessing asks the backend to process the document and polls for the outcome.
func (r *Registry) startServerProcessing(ctx context.Context, rec models.DocumentRecord) error {
	if err := r.backend.StartProcessing(ctx, rec.ID); err != nil {
		r.rollback(rec.ID)
		r.processingFailed(rec, err)
		return fmt.Errorf("%w: %w", models.ErrProcessingStartFailed, err)
	}

	r.publish(interfaces.EventProcessingStarted, events.Notification{
		Level:      events.LevelSuccess,
		Message:    "Processing started for " + rec.Filename,
		DocumentID: rec.ID.String(),
		Filename:   rec.Filename,
		Status:     string(models.StatusProcessing),
	})
	r.scheduleDelayedRefreshes(rec.ID)
	return nil
}

// rollback returns the record to uploaded and drops it from the processing set in one update.
func (r *Registry) rollback(id models.DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLocked(id, models.StatusUploaded, nil)
	delete(r.processing, id)
}

func (r *Registry) processingFailed(rec models.DocumentRecord, err error) {
	r.logger.Error().
		Err(err).
		Str("document_id", rec.ID.String()).
		Str("filename", rec.Filename).
		Msg("Failed to process document")

	r.publish(interfaces.EventProcessingStartFailed, events.Notification{
		Level:      events.LevelError,
		Message:    "Failed to start processing " + rec.Filename,
		DocumentID: rec.ID.String(),
		Filename:   rec.Filename,
		Status:     string(models.StatusUploaded),
		Error:      err.Error(),
	})
}

// ProcessAllUploaded processes every uploaded document in list order, one at a time.
// It returns how many were processed successfully along with the joined failures.
func (r *Registry) ProcessAllUploaded(ctx context.Context) (int, error) {
	var pending []models.DocumentID
	r.mu.RLock()
	for _, d := range r.documents {
		if _, busy := r.processing[d.ID]; !busy && d.Status == models.StatusUploaded {
			pending = append(pending, d.ID)
		}
	}
	r.mu.RUnlock()

	started := 0
	var errs []error
	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Process(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
			continue
		}
		started++
	}

	r.logger.Info().
		Int("pending", len(pending)).
		Int("started", started).
		Int("failed", len(errs)).
		Msg("Processed uploaded documents")
	return started, errors.Join(errs...)
}

// Delete removes a document on the backend, then drops it locally and refreshes.
// Confirmation is the caller's concern.
func (r *Registry) Delete(ctx context.Context, id models.DocumentID) error {
	filename := id.String()
	if rec, ok := r.Get(id); ok {
		filename = rec.Filename
	}

	if err := r.backend.DeleteDocument(ctx, id); err != nil {
		r.logger.Error().Err(err).Str("document_id", id.String()).Msg("Failed to delete document")
		r.publish(interfaces.EventDeleteFailed, events.Notification{
			Level:      events.LevelError,
			Message:    "Failed to delete " + filename,
			DocumentID: id.String(),
			Filename:   filename,
			Error:      err.Error(),
		})
		return fmt.Errorf("%w: %w", models.ErrDeleteFailed, err)
	}

	r.mu.Lock()
	if idx := r.indexOf(id); idx >= 0 {
		r.documents = append(r.documents[:idx], r.documents[idx+1:]...)
	}
	delete(r.processing, id)
	r.mu.Unlock()

	r.logger.Info().Str("document_id", id.String()).Str("filename", filename).Msg("Document deleted")
	r.publish(interfaces.EventDocumentDeleted, events.Notification{
		Level:      events.LevelSuccess,
		Message:    "Deleted " + filename,
		DocumentID: id.String(),
		Filename:   filename,
	})

	if err := r.Refresh(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("Refresh after delete failed")
	}
	return nil
}

// Download returns the text report for a completed document.
func (r *Registry) Download(ctx context.Context, id models.DocumentID) (export.Artifact, error) {
	return r.Export(ctx, id, export.FormatReport)
}

// Export renders a completed document in the given format. Non-completed
// documents fail with ErrNotReady before any request is made.
func (r *Registry) Export(ctx context.Context, id models.DocumentID, format string) (export.Artifact, error) {
	rec, detail, err := r.completedDetail(ctx, id)
	if err != nil {
		return export.Artifact{}, err
	}
	return export.ForFormat(format, rec, detail, time.Now(), r.pdf)
}

func (r *Registry) completedDetail(ctx context.Context, id models.DocumentID) (models.DocumentRecord, *models.DocumentDetail, error) {
	rec, ok := r.Get(id)
	if !ok {
		return rec, nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	if rec.Status != models.StatusCompleted {
		return rec, nil, fmt.Errorf("%w: document %s is %s", models.ErrNotReady, id, rec.Status)
	}

	detail, err := r.backend.GetDocument(ctx, id)
	if err != nil {
		r.logger.Error().Err(err).Str("document_id", id.String()).Msg("Failed to fetch document detail")
		return rec, nil, fmt.Errorf("fetch document %s: %w", id, err)
	}
	if !detail.HasText() {
		return rec, nil, fmt.Errorf("%w: %s", models.ErrNoExtractedText, rec.Filename)
	}
	return rec, detail, nil
}
