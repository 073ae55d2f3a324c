package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
	"github.com/ternarybob/docintel/internal/services/uploads"
	"github.com/ternarybob/docintel/internal/services/viewer"
)

type mockRegistry struct {
	mu          sync.Mutex
	docs        []models.DocumentRecord
	processing  map[models.DocumentID]bool
	lastRefresh time.Time
	autoRefresh bool

	refreshErr    error
	processErr    error
	deleteErr     error
	exportErr     error
	autoErr       error
	processed     []models.DocumentID
	deleted       []models.DocumentID
	exportFormats []string
	refreshes     int
}

func newMockRegistry(docs ...models.DocumentRecord) *mockRegistry {
	return &mockRegistry{
		docs:        docs,
		processing:  make(map[models.DocumentID]bool),
		lastRefresh: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockRegistry) Documents() []models.DocumentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DocumentRecord(nil), m.docs...)
}

func (m *mockRegistry) Search(term string) []models.DocumentRecord {
	var out []models.DocumentRecord
	for _, d := range m.Documents() {
		if strings.Contains(strings.ToLower(d.Filename), strings.ToLower(term)) {
			out = append(out, d)
		}
	}
	return out
}

func (m *mockRegistry) IsProcessing(id models.DocumentID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing[id]
}

func (m *mockRegistry) LastRefresh() (time.Time, bool) {
	return m.lastRefresh, false
}

func (m *mockRegistry) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return m.refreshErr
}

func (m *mockRegistry) Process(ctx context.Context, id models.DocumentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, id)
	return m.processErr
}

func (m *mockRegistry) ProcessAllUploaded(ctx context.Context) (int, error) {
	return 2, m.processErr
}

func (m *mockRegistry) Delete(ctx context.Context, id models.DocumentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

func (m *mockRegistry) Export(ctx context.Context, id models.DocumentID, format string) (export.Artifact, error) {
	m.mu.Lock()
	m.exportFormats = append(m.exportFormats, format)
	m.mu.Unlock()
	if m.exportErr != nil {
		return export.Artifact{}, m.exportErr
	}
	return export.Artifact{
		Filename:    fmt.Sprintf("doc%s_extracted.txt", id),
		ContentType: export.ContentTypeText,
		Data:        []byte("hello"),
	}, nil
}

func (m *mockRegistry) AutoRefreshEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoRefresh
}

func (m *mockRegistry) SetAutoRefresh(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.autoErr != nil {
		return m.autoErr
	}
	m.autoRefresh = enabled
	return nil
}

type mockOpener struct {
	session *viewer.Session
	err     error
}

func (m *mockOpener) Open(ctx context.Context, id models.DocumentID) (*viewer.Session, error) {
	return m.session, m.err
}

type mockQueue struct {
	mu          sync.Mutex
	items       []models.UploadItem
	useAdvanced bool
	batches     int
	runs        int
	cleared     bool
	processErr  error
}

func (m *mockQueue) Enqueue(files ...models.LocalFile) []models.UploadItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := make([]models.UploadItem, 0, len(files))
	for i, f := range files {
		item := models.UploadItem{ID: fmt.Sprintf("u%d", len(m.items)+i), File: f, Status: models.UploadPending}
		added = append(added, item)
	}
	m.items = append(m.items, added...)
	return added
}

func (m *mockQueue) Items() []models.UploadItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UploadItem(nil), m.items...)
}

func (m *mockQueue) Remove(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.items) || m.items[index].Status != models.UploadPending {
		return false
	}
	m.items = append(m.items[:index], m.items[index+1:]...)
	return true
}

func (m *mockQueue) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.cleared = true
}

func (m *mockQueue) UseAdvanced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.useAdvanced
}

func (m *mockQueue) SetUseAdvanced(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.useAdvanced = enabled
}

func (m *mockQueue) ProcessAll(ctx context.Context) (uploads.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return uploads.Summary{Succeeded: len(m.items)}, m.processErr
}

func (m *mockQueue) ProcessBatch(ctx context.Context) (uploads.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	return uploads.Summary{Succeeded: len(m.items)}, m.processErr
}

type mockStats struct {
	stats *models.DashboardStats
	err   error
}

func (m *mockStats) Overview(ctx context.Context) (*models.DashboardStats, error) {
	return m.stats, m.err
}
