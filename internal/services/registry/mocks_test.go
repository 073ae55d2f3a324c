package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
)

var errBackendDown = errors.New("backend unavailable")

// mockBackend implements interfaces.DocumentBackend and counts calls per method
type mockBackend struct {
	mu    sync.Mutex
	calls map[string]int

	list      []models.DocumentRecord
	listErr   error
	listHook  func(call int) ([]models.DocumentRecord, error)
	detail    *models.DocumentDetail
	detailErr error

	downloadErr error
	extract     func(filename string, data []byte) (*models.ExtractionResult, error)
	extracted   []string

	processErr error
	deleteErr  error
}

func newMockBackend(docs ...models.DocumentRecord) *mockBackend {
	return &mockBackend{
		calls: make(map[string]int),
		list:  docs,
	}
}

func (m *mockBackend) record(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return m.calls[name]
}

func (m *mockBackend) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockBackend) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockBackend) setList(docs ...models.DocumentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = docs
}

func (m *mockBackend) ListDocuments(ctx context.Context, limit int) (*models.DocumentList, error) {
	call := m.record("list")
	m.mu.Lock()
	hook, docs, err := m.listHook, m.list, m.listErr
	m.mu.Unlock()
	if hook != nil {
		docs, err = hook(call)
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentRecord, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return &models.DocumentList{Documents: out, Total: len(out), Limit: limit}, nil
}

func (m *mockBackend) GetDocument(ctx context.Context, id models.DocumentID) (*models.DocumentDetail, error) {
	m.record("detail")
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *mockBackend) GetEntities(ctx context.Context, id models.DocumentID) (*models.EntityBundle, error) {
	m.record("entities")
	return nil, nil
}

func (m *mockBackend) DownloadDocument(ctx context.Context, id models.DocumentID) ([]byte, error) {
	m.record("download")
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return []byte("%PDF-1.4 fake"), nil
}

func (m *mockBackend) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	m.record("delete")
	return m.deleteErr
}

func (m *mockBackend) StartProcessing(ctx context.Context, id models.DocumentID) error {
	m.record("process")
	return m.processErr
}

func (m *mockBackend) ExtractText(ctx context.Context, filename string, data []byte) (*models.ExtractionResult, error) {
	m.record("extract")
	m.mu.Lock()
	m.extracted = append(m.extracted, filename)
	fn := m.extract
	m.mu.Unlock()
	if fn == nil {
		return &models.ExtractionResult{Status: "success", WordCount: 1}, nil
	}
	return fn(filename, data)
}

// recordingEvents implements interfaces.EventService and keeps every published event
type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (e *recordingEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error {
	return nil
}

func (e *recordingEvents) Unsubscribe(interfaces.EventType, interfaces.EventHandler) error {
	return nil
}

func (e *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return e.Publish(ctx, event)
}

func (e *recordingEvents) Close() error {
	return nil
}

func (e *recordingEvents) count(eventType interfaces.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// memorySnapshots implements interfaces.SnapshotStorage in memory
type memorySnapshots struct {
	mu       sync.Mutex
	snapshot *models.DocumentSnapshot
	saves    int
}

func (s *memorySnapshots) SaveSnapshot(ctx context.Context, snapshot *models.DocumentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.saves++
	return nil
}

func (s *memorySnapshots) LoadSnapshot(ctx context.Context) (*models.DocumentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, nil
}

func (s *memorySnapshots) FindByStatus(ctx context.Context, status models.DocumentStatus) ([]models.DocumentRecord, error) {
	return nil, nil
}

func (s *memorySnapshots) ClearSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	return nil
}

func (s *memorySnapshots) Close() error {
	return nil
}

func doc(id, filename string, status models.DocumentStatus) models.DocumentRecord {
	return models.DocumentRecord{
		ID:       models.DocumentID(id),
		Filename: filename,
		Status:   status,
	}
}

type fixture struct {
	registry *Registry
	backend  *mockBackend
	events   *recordingEvents
}

func newFixture(t *testing.T, config Config, docs ...models.DocumentRecord) *fixture {
	t.Helper()

	backend := newMockBackend(docs...)
	recorder := &recordingEvents{}
	r, err := NewRegistry(backend, nil, recorder, nil, config, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	if len(docs) > 0 {
		require.NoError(t, r.Refresh(context.Background()))
		backend.mu.Lock()
		backend.calls = make(map[string]int)
		backend.mu.Unlock()
	}

	return &fixture{registry: r, backend: backend, events: recorder}
}

func extractConfig() Config {
	c := DefaultConfig()
	c.ProcessMode = common.ProcessModeExtract
	return c
}

func serverConfig(delays ...time.Duration) Config {
	c := DefaultConfig()
	c.ProcessMode = common.ProcessModeServer
	c.RefreshDelays = delays
	return c
}

func requireValidStatuses(t *testing.T, r *Registry) {
	t.Helper()
	for _, d := range r.Documents() {
		require.True(t, d.Status.Valid(), "document %s has status %q", d.ID, d.Status)
	}
}
