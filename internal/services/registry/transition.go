package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
)

// extract runs the client-driven processing path for a record already marked processing.
//
// Formats that need OCR are downloaded and resubmitted to the extraction
// endpoint; everything else completes immediately. Failures roll the record
// back to uploaded. The id always leaves the processing set.
func (r *Registry) extract(ctx context.Context, rec models.DocumentRecord) error {
	defer r.clearProcessing(rec.ID)

	if !rec.RequiresExtraction() {
		r.complete(rec, nil)
		return nil
	}

	result, err := r.runExtraction(ctx, rec)
	if err != nil {
		r.rollback(rec.ID)
		r.processingFailed(rec, err)
		return fmt.Errorf("%w: %w", models.ErrProcessingStartFailed, err)
	}

	r.complete(rec, result)
	return nil
}

func (r *Registry) runExtraction(ctx context.Context, rec models.DocumentRecord) (*models.ExtractionResult, error) {
	data, err := r.backend.DownloadDocument(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rec.Filename, err)
	}

	result, err := r.backend.ExtractText(ctx, extractionFilename(rec.Filename), data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", rec.Filename, err)
	}
	return result, nil
}

// complete sets status completed and attaches the metrics in one locked update.
func (r *Registry) complete(rec models.DocumentRecord, result *models.ExtractionResult) {
	r.mu.Lock()
	applied := r.updateLocked(rec.ID, models.StatusCompleted, func(d *models.DocumentRecord) {
		if result == nil {
			return
		}
		wordCount := result.WordCount
		d.WordCount = &wordCount
		if result.Confidence != nil {
			confidence := *result.Confidence
			d.Confidence = &confidence
		}
	})
	delete(r.processing, rec.ID)
	r.mu.Unlock()

	if !applied {
		r.logger.Warn().Str("document_id", rec.ID.String()).Msg("Document left the list before processing completed")
	}

	n := events.Notification{
		Level:      events.LevelSuccess,
		Message:    "Processing completed for " + rec.Filename,
		DocumentID: rec.ID.String(),
		Filename:   rec.Filename,
		Status:     string(models.StatusCompleted),
	}
	if result != nil {
		wordCount := result.WordCount
		n.WordCount = &wordCount
		n.Message = fmt.Sprintf("OCR completed: %d words extracted", wordCount)
	}

	r.logger.Info().
		Str("document_id", rec.ID.String()).
		Str("filename", rec.Filename).
		Bool("extracted", result != nil).
		Msg("Document processing completed")
	r.publish(interfaces.EventProcessingCompleted, n)
}

// extractionFilename ensures the name passes the extraction endpoint's ".pdf" check.
func extractionFilename(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return filename
	}
	return filename + ".pdf"
}
