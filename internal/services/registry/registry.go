// Package registry owns the document list and the status synchronization with the OCR backend.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
	"github.com/ternarybob/docintel/internal/services/export"
)

// Config holds the registry settings resolved from the application config.
type Config struct {
	ProcessMode     string
	ListLimit       int
	RefreshInterval time.Duration
	RefreshDelays   []time.Duration
	RequestTimeout  time.Duration
}

// DefaultConfig mirrors the application defaults.
func DefaultConfig() Config {
	return Config{
		ProcessMode:     common.ProcessModeExtract,
		ListLimit:       100,
		RefreshInterval: 5 * time.Second,
		RefreshDelays:   []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		RequestTimeout:  30 * time.Second,
	}
}

// ConfigFromCommon resolves the registry settings from the application config.
func ConfigFromCommon(config *common.Config) (Config, error) {
	delays, err := config.Registry.RefreshDelays()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ProcessMode:     config.Registry.ProcessMode,
		ListLimit:       config.Backend.ListLimit,
		RefreshInterval: config.Registry.Interval(),
		RefreshDelays:   delays,
		RequestTimeout:  config.Backend.TimeoutDuration(),
	}, nil
}

// Registry is the document list view-model. It is the only writer of the list.
type Registry struct {
	backend   interfaces.DocumentBackend
	scheduler interfaces.SchedulerService
	events    interfaces.EventService
	cache     interfaces.SnapshotStorage
	pdf       *export.PDFRenderer
	config    Config
	logger    arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	documents   []models.DocumentRecord
	processing  map[models.DocumentID]struct{}
	issued      uint64
	applied     uint64
	lastRefresh time.Time
	fromCache   bool
	autoRefresh bool
	timers      map[*time.Timer]struct{}
	closed      bool

	saveMu   sync.Mutex
	savedSeq uint64
}

// NewRegistry creates a registry and registers its (disarmed) auto-refresh job.
// events and cache may be nil.
func NewRegistry(
	backend interfaces.DocumentBackend,
	scheduler interfaces.SchedulerService,
	eventService interfaces.EventService,
	cache interfaces.SnapshotStorage,
	config Config,
	logger arbor.ILogger,
) (*Registry, error) {
	if config.ListLimit <= 0 {
		config.ListLimit = DefaultConfig().ListLimit
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if config.ProcessMode == "" {
		config.ProcessMode = common.ProcessModeExtract
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		backend:    backend,
		scheduler:  scheduler,
		events:     eventService,
		cache:      cache,
		pdf:        export.NewPDFRenderer(logger),
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		processing: make(map[models.DocumentID]struct{}),
		timers:     make(map[*time.Timer]struct{}),
	}

	if scheduler != nil {
		if err := r.registerAutoRefresh(); err != nil {
			cancel()
			return nil, err
		}
	}

	return r, nil
}

// Documents returns a copy of the current list in backend order.
func (r *Registry) Documents() []models.DocumentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.documents)
}

// Get returns a copy of one record.
func (r *Registry) Get(id models.DocumentID) (models.DocumentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(id)
	if idx < 0 {
		return models.DocumentRecord{}, false
	}
	return r.documents[idx].Clone(), true
}

// IsProcessing reports whether id is mid-transition.
func (r *Registry) IsProcessing(id models.DocumentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.processing[id]
	return ok
}

// ProcessingIDs returns the ids currently mid-transition.
func (r *Registry) ProcessingIDs() []models.DocumentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.DocumentID, 0, len(r.processing))
	for _, d := range r.documents {
		if _, ok := r.processing[d.ID]; ok {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// AutoRefreshEnabled reports whether the recurring refresh is armed.
func (r *Registry) AutoRefreshEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoRefresh
}

// LastRefresh returns when a snapshot was last applied and whether the list came from the cache.
func (r *Registry) LastRefresh() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh, r.fromCache
}

// Search filters the current list by a case-insensitive filename substring.
func (r *Registry) Search(term string) []models.DocumentRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	docs := r.Documents()
	if term == "" {
		return docs
	}
	out := docs[:0]
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Filename), term) {
			out = append(out, d)
		}
	}
	return out
}

// ProcessMode returns the configured process dispatch mode.
func (r *Registry) ProcessMode() string {
	return r.config.ProcessMode
}

// indexOf returns the position of id. Caller holds mu.
func (r *Registry) indexOf(id models.DocumentID) int {
	for i := range r.documents {
		if r.documents[i].ID == id {
			return i
		}
	}
	return -1
}

// update applies fn to the record under the write lock, enforcing the local transition table
// when the status changes. It reports whether the record existed and the change was allowed.
func (r *Registry) update(id models.DocumentID, to models.DocumentStatus, fn func(*models.DocumentRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(id, to, fn)
}

func (r *Registry) updateLocked(id models.DocumentID, to models.DocumentStatus, fn func(*models.DocumentRecord)) bool {
	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}
	rec := &r.documents[idx]
	if rec.Status != to && !models.CanTransition(rec.Status, to) {
		r.logger.Warn().
			Str("document_id", id.String()).
			Str("from", string(rec.Status)).
			Str("to", string(to)).
			Msg("Rejected local status transition")
		return false
	}
	rec.Status = to
	if fn != nil {
		fn(rec)
	}
	return true
}

func (r *Registry) clearProcessing(id models.DocumentID) {
	r.mu.Lock()
	delete(r.processing, id)
	r.mu.Unlock()
}

func (r *Registry) publish(eventType interfaces.EventType, n events.Notification) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(r.ctx, events.NewEvent(eventType, n)); err != nil {
		r.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

func (r *Registry) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.config.RequestTimeout)
}

func cloneRecords(in []models.DocumentRecord) []models.DocumentRecord {
	out := make([]models.DocumentRecord, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}
