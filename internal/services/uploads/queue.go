// Package uploads holds the upload queue view-model and the inbox directory watcher.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
)

// Summary counts the outcome of one processing pass.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Queue is the upload queue view-model. Items are uploaded strictly in
// enqueue order with at most one in flight.
type Queue struct {
	backend interfaces.UploadBackend
	events  interfaces.EventService
	logger  arbor.ILogger

	mu          sync.RWMutex
	items       []*models.UploadItem
	inBatch     map[string]struct{}
	useAdvanced bool

	// runMu serializes ProcessAll and ProcessBatch
	runMu sync.Mutex
}

// NewQueue creates an empty queue. eventService may be nil.
func NewQueue(backend interfaces.UploadBackend, eventService interfaces.EventService, useAdvanced bool, logger arbor.ILogger) *Queue {
	return &Queue{
		backend:     backend,
		events:      eventService,
		logger:      logger,
		inBatch:     make(map[string]struct{}),
		useAdvanced: useAdvanced,
	}
}

// Enqueue appends files as pending items and returns copies of the new items.
func (q *Queue) Enqueue(files ...models.LocalFile) []models.UploadItem {
	now := time.Now()
	added := make([]models.UploadItem, 0, len(files))

	q.mu.Lock()
	for _, f := range files {
		item := &models.UploadItem{
			ID:        common.NewUploadID(),
			File:      f,
			Status:    models.UploadPending,
			AddedAt:   now,
			UpdatedAt: now,
		}
		q.items = append(q.items, item)
		added = append(added, item.Clone())
	}
	size := len(q.items)
	q.mu.Unlock()

	q.logger.Debug().Int("added", len(files)).Int("queue_size", size).Msg("Files queued for upload")
	return added
}

// Items returns copies of every item in queue order.
func (q *Queue) Items() []models.UploadItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.UploadItem, len(q.items))
	for i, item := range q.items {
		out[i] = item.Clone()
	}
	return out
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// PendingCount returns the number of items waiting to be uploaded.
func (q *Queue) PendingCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, item := range q.items {
		if item.Status == models.UploadPending {
			n++
		}
	}
	return n
}

// Remove drops the item at index if it is still pending and not part of a
// batch in flight. It reports whether an item was removed.
func (q *Queue) Remove(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return false
	}
	item := q.items[index]
	if item.Status != models.UploadPending {
		return false
	}
	if _, busy := q.inBatch[item.ID]; busy {
		return false
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	return true
}

// ClearAll empties the queue regardless of item states.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	q.logger.Debug().Msg("Upload queue cleared")
}

// SetUseAdvanced toggles the advanced OCR pipeline for subsequent uploads.
func (q *Queue) SetUseAdvanced(enabled bool) {
	q.mu.Lock()
	q.useAdvanced = enabled
	q.mu.Unlock()
}

// UseAdvanced reports whether uploads request the advanced OCR pipeline.
func (q *Queue) UseAdvanced() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.useAdvanced
}

// ProcessAll uploads pending items one at a time in queue order. Terminal
// items are skipped. It stops early when ctx is cancelled, leaving the rest pending.
func (q *Queue) ProcessAll(ctx context.Context) (Summary, error) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	var summary Summary
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		item, file, useAdvanced := q.next()
		if item == nil {
			break
		}
		q.publish(item)

		result, err := q.backend.UploadDocument(ctx, file, useAdvanced)
		if err != nil {
			q.logger.Error().Err(err).Str("filename", file.Name).Msg("Upload failed")
			q.finish(item, nil, err)
			summary.Failed++
			continue
		}

		q.logger.Info().
			Str("filename", file.Name).
			Str("document_id", result.DocumentID.String()).
			Msg("File uploaded")
		q.finish(item, result, nil)
		summary.Succeeded++
	}

	return summary, nil
}

// next marks the first pending item uploading and returns it.
func (q *Queue) next() (*models.UploadItem, models.LocalFile, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Status == models.UploadPending {
			item.Status = models.UploadUploading
			item.UpdatedAt = time.Now()
			return item, item.File, q.useAdvanced
		}
	}
	return nil, models.LocalFile{}, false
}

func (q *Queue) finish(item *models.UploadItem, result *models.ProcessResponse, err error) {
	q.mu.Lock()
	if err != nil {
		item.Status = models.UploadError
		item.Error = err.Error()
	} else {
		item.Status = models.UploadSuccess
		item.Result = result
	}
	item.UpdatedAt = time.Now()
	q.mu.Unlock()

	q.publish(item)
}

// ProcessBatch sends every pending item in one batch request. Results are
// matched to items by filename; items without a result fail.
func (q *Queue) ProcessBatch(ctx context.Context) (Summary, error) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	q.mu.Lock()
	var batch []*models.UploadItem
	var files []models.LocalFile
	for _, item := range q.items {
		if item.Status == models.UploadPending {
			batch = append(batch, item)
			files = append(files, item.File)
			q.inBatch[item.ID] = struct{}{}
		}
	}
	useAdvanced := q.useAdvanced
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		for _, item := range batch {
			delete(q.inBatch, item.ID)
		}
		q.mu.Unlock()
	}()

	if len(batch) == 0 {
		return Summary{}, nil
	}

	response, err := q.backend.BatchUpload(ctx, files, useAdvanced)
	if err != nil {
		q.logger.Error().Err(err).Int("files", len(files)).Msg("Batch upload failed")
		for _, item := range batch {
			q.finish(item, nil, err)
		}
		return Summary{Failed: len(batch)}, fmt.Errorf("batch upload: %w", err)
	}

	used := make([]bool, len(response.Results))
	var summary Summary
	for _, item := range batch {
		result := matchResult(item.File.Name, response.Results, used)
		switch {
		case result == nil:
			q.finish(item, nil, errors.New("no result returned for file"))
			summary.Failed++
		case !result.Success:
			msg := result.Message
			if msg == "" {
				msg = "processing failed"
			}
			q.finish(item, result, errors.New(msg))
			summary.Failed++
		default:
			q.finish(item, result, nil)
			summary.Succeeded++
		}
	}

	q.logger.Info().
		Int("total", response.Total).
		Int("successful", response.Successful).
		Int("failed", response.Failed).
		Msg("Batch upload finished")
	return summary, nil
}

func matchResult(filename string, results []models.ProcessResponse, used []bool) *models.ProcessResponse {
	for i := range results {
		if !used[i] && results[i].Filename == filename {
			used[i] = true
			r := results[i]
			return &r
		}
	}
	return nil
}

func (q *Queue) publish(item *models.UploadItem) {
	if q.events == nil {
		return
	}

	q.mu.RLock()
	snapshot := item.Clone()
	q.mu.RUnlock()

	n := events.Notification{
		Level:    events.LevelInfo,
		Message:  fmt.Sprintf("%s: %s", snapshot.File.Name, snapshot.Status),
		Filename: snapshot.File.Name,
		Status:   string(snapshot.Status),
		Error:    snapshot.Error,
	}
	switch snapshot.Status {
	case models.UploadSuccess:
		n.Level = events.LevelSuccess
		if snapshot.Result != nil {
			wordCount := snapshot.Result.WordCount
			n.WordCount = &wordCount
			n.DocumentID = snapshot.Result.DocumentID.String()
		}
	case models.UploadError:
		n.Level = events.LevelError
	}

	if err := q.events.Publish(context.Background(), events.NewEvent(interfaces.EventUploadStatus, n)); err != nil {
		q.logger.Warn().Err(err).Msg("Failed to publish upload status")
	}
}
