// Package dashboard derives summary counters from a document snapshot.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
)

// DefaultSnapshotLimit is the list size fetched for one snapshot.
const DefaultSnapshotLimit = 1000

// Aggregator computes dashboard statistics from backend snapshots.
type Aggregator struct {
	reader interfaces.DocumentReader
	health interfaces.HealthChecker
	limit  int
	logger arbor.ILogger
}

// NewAggregator creates an aggregator. health may be nil.
func NewAggregator(reader interfaces.DocumentReader, health interfaces.HealthChecker, limit int, logger arbor.ILogger) *Aggregator {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	return &Aggregator{
		reader: reader,
		health: health,
		limit:  limit,
		logger: logger,
	}
}

// Compute derives the statistics for records as of now.
func Compute(records []models.DocumentRecord, now time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		TotalDocuments: len(records),
		ByStatus:       StatusBreakdown(records),
		ComputedAt:     now,
	}

	var sum float64
	for _, r := range records {
		if ts, ok := r.Timestamp(); ok && sameDay(ts, now) {
			stats.ProcessedToday++
		}
		if r.Confidence != nil {
			sum += *r.Confidence
		}
	}
	if len(records) > 0 {
		stats.AverageConfidence = math.Round(sum/float64(len(records))*10) / 10
	}
	return stats
}

// StatusBreakdown counts records per status. Every status is present.
func StatusBreakdown(records []models.DocumentRecord) map[models.DocumentStatus]int {
	out := make(map[models.DocumentStatus]int, len(models.AllDocumentStatuses))
	for _, s := range models.AllDocumentStatuses {
		out[s] = 0
	}
	for _, r := range records {
		out[models.ParseDocumentStatus(string(r.Status))]++
	}
	return out
}

func sameDay(t, now time.Time) bool {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Snapshot fetches one document list and computes the statistics.
func (a *Aggregator) Snapshot(ctx context.Context) (*models.DashboardStats, error) {
	list, err := a.reader.ListDocuments(ctx, a.limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to fetch dashboard snapshot")
		return nil, fmt.Errorf("dashboard snapshot: %w", err)
	}
	stats := Compute(list.Documents, time.Now())
	return &stats, nil
}

// OCRStatus reports whether the OCR backend declares itself healthy.
func (a *Aggregator) OCRStatus(ctx context.Context) (bool, error) {
	if a.health == nil {
		return false, fmt.Errorf("health checks are not configured")
	}
	status, err := a.health.Health(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("OCR backend offline")
		return false, err
	}
	return status.Healthy(), nil
}

// Overview computes the snapshot statistics and the OCR status concurrently.
// An unreachable health endpoint reports offline rather than failing.
func (a *Aggregator) Overview(ctx context.Context) (*models.DashboardStats, error) {
	var (
		stats  *models.DashboardStats
		online bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.Snapshot(gctx)
		stats = s
		return err
	})
	if a.health != nil {
		g.Go(func() error {
			online, _ = a.OCRStatus(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.health != nil {
		stats.OCROnline = &online
	}
	return stats, nil
}
