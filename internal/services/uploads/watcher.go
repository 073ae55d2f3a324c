package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
)

// DefaultSettleDelay is how long a file must stay quiet before it is queued.
const DefaultSettleDelay = 500 * time.Millisecond

// InboxWatcher queues files dropped into a directory.
type InboxWatcher struct {
	config common.UploadsConfig
	queue  *Queue
	events interfaces.EventService
	logger arbor.ILogger
	settle time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	queued  map[string]struct{}
	stopped bool
}

// NewInboxWatcher creates a watcher for config.InboxDir. eventService may be nil.
func NewInboxWatcher(config common.UploadsConfig, queue *Queue, eventService interfaces.EventService, logger arbor.ILogger) (*InboxWatcher, error) {
	if config.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is not configured")
	}
	return &InboxWatcher{
		config:  config,
		queue:   queue,
		events:  eventService,
		logger:  logger,
		settle:  DefaultSettleDelay,
		pending: make(map[string]*time.Timer),
		queued:  make(map[string]struct{}),
	}, nil
}

// WithSettleDelay overrides the quiet period before a file is queued.
func (w *InboxWatcher) WithSettleDelay(d time.Duration) *InboxWatcher {
	w.settle = d
	return w
}

// Dir returns the watched directory.
func (w *InboxWatcher) Dir() string {
	return w.config.InboxDir
}

// Start creates the inbox directory if needed and begins watching it.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.InboxDir, 0755); err != nil {
		return fmt.Errorf("create inbox %s: %w", w.config.InboxDir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.config.InboxDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.config.InboxDir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel

	w.wg.Add(1)
	common.SafeGo(w.logger, "uploads.inbox_watcher", func() {
		defer w.wg.Done()
		w.loop(ctx)
	})

	w.logger.Info().
		Str("dir", w.config.InboxDir).
		Bool("auto_process", w.config.AutoProcess).
		Msg("Inbox watcher started")
	return nil
}

func (w *InboxWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("dir", w.config.InboxDir).Msg("Inbox watcher error")
		}
	}
}

func (w *InboxWatcher) handle(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if !w.config.AcceptsExtension(filepath.Ext(path)) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		if t, ok := w.pending[path]; ok {
			t.Stop()
			delete(w.pending, path)
		}
		delete(w.queued, path)
		w.mu.Unlock()
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(ctx, path)
	}
}

// schedule debounces writes so a file is queued once it stops changing.
func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, done := w.queued[path]; done {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		// Stop waits on fired callbacks; none may join once it has begun
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		defer common.RecoverPanic(w.logger, "uploads.inbox_enqueue")
		w.enqueue(ctx, path)
	})
}

func (w *InboxWatcher) enqueue(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	if _, done := w.queued[path]; done || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.queued[path] = struct{}{}
	w.mu.Unlock()

	file, err := LoadLocalFile(path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Skipping inbox file")
		w.mu.Lock()
		delete(w.queued, path)
		w.mu.Unlock()
		return
	}

	w.queue.Enqueue(file)
	w.logger.Info().Str("filename", file.Name).Str("mime_type", file.MIMEType).Msg("Inbox file queued")

	if w.events != nil {
		err := w.events.Publish(ctx, events.NewEvent(interfaces.EventInboxFileQueued, events.Notification{
			Level:    events.LevelInfo,
			Message:  "Queued " + file.Name,
			Filename: file.Name,
			Status:   string(models.UploadPending),
		}))
		if err != nil {
			w.logger.Warn().Err(err).Str("filename", file.Name).Msg("Failed to publish inbox event")
		}
	}

	if w.config.AutoProcess {
		if _, err := w.queue.ProcessAll(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("Inbox auto-process stopped")
		}
	}
}

// Stop stops watching, cancels pending enqueues and waits for enqueues that
// already fired, including any auto-process run they started.
func (w *InboxWatcher) Stop() error {
	if w.cancel == nil {
		return nil
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.cancel()

	err := w.watcher.Close()
	w.wg.Wait()
	w.logger.Debug().Str("dir", w.config.InboxDir).Msg("Inbox watcher stopped")
	return err
}
