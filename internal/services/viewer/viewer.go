// Package viewer holds one document detail session at a time.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
)

// ErrNoSession is returned by session helpers when no document is open.
var ErrNoSession = errors.New("no document is open")

// RecordSource looks up the registry's current copy of a record.
type RecordSource interface {
	Get(id models.DocumentID) (models.DocumentRecord, bool)
}

// Session is one open document. Entities is nil when they were not computed
// or could not be fetched.
type Session struct {
	Record   models.DocumentRecord  `json:"record"`
	Detail   *models.DocumentDetail `json:"detail"`
	Entities *models.EntityBundle   `json:"entities"`
	OpenedAt time.Time              `json:"opened_at"`
}

// Viewer fetches and holds the detail of one completed document.
type Viewer struct {
	reader  interfaces.DocumentReader
	records RecordSource
	pdf     *export.PDFRenderer
	logger  arbor.ILogger

	mu      sync.RWMutex
	session *Session
}

// NewViewer creates a viewer reading records from the registry.
func NewViewer(reader interfaces.DocumentReader, records RecordSource, logger arbor.ILogger) *Viewer {
	return &Viewer{
		reader:  reader,
		records: records,
		pdf:     export.NewPDFRenderer(logger),
		logger:  logger,
	}
}

// Open fetches the detail and, independently, the entities of a completed
// document. An entity failure leaves Entities nil; a detail failure fails the open.
// A successful open replaces the previous session.
func (v *Viewer) Open(ctx context.Context, id models.DocumentID) (*Session, error) {
	rec, ok := v.records.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	if rec.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: document %s is %s", models.ErrNotReady, id, rec.Status)
	}

	var (
		detail   *models.DocumentDetail
		entities *models.EntityBundle
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := v.reader.GetDocument(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch document %s: %w", id, err)
		}
		detail = d
		return nil
	})
	// not tied to gctx: a failed detail fetch must not cancel the entity fetch
	g.Go(func() error {
		e, err := v.reader.GetEntities(ctx, id)
		if err != nil {
			v.logger.Warn().Err(err).Str("document_id", id.String()).Msg("Entities unavailable")
			return nil
		}
		entities = e
		return nil
	})

	if err := g.Wait(); err != nil {
		v.logger.Error().Err(err).Str("document_id", id.String()).Msg("Failed to open document")
		return nil, err
	}

	session := &Session{
		Record:   rec,
		Detail:   detail,
		Entities: entities,
		OpenedAt: time.Now(),
	}

	v.mu.Lock()
	v.session = session
	v.mu.Unlock()

	v.logger.Debug().
		Str("document_id", id.String()).
		Bool("entities", entities != nil).
		Msg("Document opened")
	return session, nil
}

// Current returns the open session, or nil.
func (v *Viewer) Current() *Session {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.session
}

// Close discards the open session.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.session = nil
	v.mu.Unlock()
}

func (v *Viewer) current() (*Session, error) {
	s := v.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	if !s.Detail.HasText() {
		return nil, fmt.Errorf("%w: %s", models.ErrNoExtractedText, s.Record.Filename)
	}
	return s, nil
}

// ExportText returns the raw extracted text of the open document.
func (v *Viewer) ExportText() (export.Artifact, error) {
	s, err := v.current()
	if err != nil {
		return export.Artifact{}, err
	}
	return export.RawText(s.Record.Filename, s.Detail), nil
}

// ExportCSV returns the one-row CSV of the open document.
func (v *Viewer) ExportCSV() (export.Artifact, error) {
	s, err := v.current()
	if err != nil {
		return export.Artifact{}, err
	}
	return export.CSV(s.Record, s.Detail), nil
}

// ExportReport returns the text report of the open document.
func (v *Viewer) ExportReport() (export.Artifact, error) {
	s, err := v.current()
	if err != nil {
		return export.Artifact{}, err
	}
	return export.TextReport(s.Record, s.Detail, time.Now()), nil
}

// ExportPDF returns the PDF report of the open document.
func (v *Viewer) ExportPDF() (export.Artifact, error) {
	s, err := v.current()
	if err != nil {
		return export.Artifact{}, err
	}
	return v.pdf.Report(s.Record, s.Detail, time.Now())
}
