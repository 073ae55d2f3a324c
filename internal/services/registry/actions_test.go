package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
)

func floatPtr(v float64) *float64 { return &v }

func TestProcess_RejectsNonUploadedWithoutNetwork(t *testing.T) {
	for _, status := range []models.DocumentStatus{models.StatusProcessing, models.StatusCompleted, models.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, extractConfig(), doc("1", "a.pdf", status))

			err := f.registry.Process(context.Background(), "1")
			require.ErrorIs(t, err, models.ErrInvalidTransition)

			assert.Zero(t, f.backend.total())
			got, _ := f.registry.Get("1")
			assert.Equal(t, status, got.Status)
			assert.False(t, f.registry.IsProcessing("1"))
			assert.Empty(t, f.events.events)
		})
	}
}

func TestProcess_ServerModeRejectsNonUploadedWithoutNetwork(t *testing.T) {
	f := newFixture(t, serverConfig(time.Hour), doc("1", "a.pdf", models.StatusCompleted))

	require.ErrorIs(t, f.registry.Process(context.Background(), "1"), models.ErrInvalidTransition)
	assert.Zero(t, f.backend.total())
	assert.Zero(t, f.registry.PendingTimers())
}

func TestProcess_ExtractSuccessAttachesMetrics(t *testing.T) {
	rec := doc("5", "scan", models.StatusUploaded)
	rec.FileType = "pdf"
	f := newFixture(t, extractConfig(), rec)

	var sawProcessing bool
	f.backend.extract = func(filename string, data []byte) (*models.ExtractionResult, error) {
		got, _ := f.registry.Get("5")
		sawProcessing = got.Status == models.StatusProcessing && got.WordCount == nil && f.registry.IsProcessing("5")
		return &models.ExtractionResult{Status: "success", WordCount: 120, Confidence: floatPtr(91.5)}, nil
	}

	require.NoError(t, f.registry.Process(context.Background(), "5"))

	assert.True(t, sawProcessing, "record is optimistically processing during extraction")
	got, ok := f.registry.Get("5")
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.WordCount)
	assert.Equal(t, 120, *got.WordCount)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 91.5, *got.Confidence)
	assert.False(t, f.registry.IsProcessing("5"))

	assert.Equal(t, 1, f.backend.count("download"))
	assert.Equal(t, []string{"scan.pdf"}, f.backend.extracted, "extraction filename carries the pdf suffix")
	assert.Equal(t, 1, f.events.count(interfaces.EventProcessingCompleted))
	requireValidStatuses(t, f.registry)
}

func TestProcess_CompletedNeverObservedWithoutMetrics(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("5", "report.pdf", models.StatusUploaded))

	release := make(chan struct{})
	f.backend.extract = func(string, []byte) (*models.ExtractionResult, error) {
		<-release
		return &models.ExtractionResult{WordCount: 42}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.registry.Process(context.Background(), "5") }()

	stop := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				close(violations)
				return
			default:
			}
			if got, ok := f.registry.Get("5"); ok && got.Status == models.StatusCompleted && got.WordCount == nil {
				violations <- "completed without word count"
				close(violations)
				return
			}
		}
	}()

	close(release)
	require.NoError(t, <-done)
	close(stop)
	for v := range violations {
		t.Fatal(v)
	}
}

func TestProcess_ExtractFailureRollsBackToUploaded(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("5", "contract.pdf", models.StatusUploaded))
	f.backend.extract = func(string, []byte) (*models.ExtractionResult, error) {
		return nil, errBackendDown
	}

	err := f.registry.Process(context.Background(), "5")
	require.ErrorIs(t, err, models.ErrProcessingStartFailed)
	assert.ErrorIs(t, err, errBackendDown)

	got, _ := f.registry.Get("5")
	assert.Equal(t, models.StatusUploaded, got.Status)
	assert.False(t, f.registry.IsProcessing("5"))
	assert.Empty(t, f.registry.ProcessingIDs())
	assert.Equal(t, 1, f.events.count(interfaces.EventProcessingStartFailed))
	assert.Zero(t, f.events.count(interfaces.EventProcessingCompleted))
}

func TestProcess_DownloadFailureRollsBackToUploaded(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("5", "contract.pdf", models.StatusUploaded))
	f.backend.downloadErr = errBackendDown

	require.ErrorIs(t, f.registry.Process(context.Background(), "5"), models.ErrProcessingStartFailed)

	got, _ := f.registry.Get("5")
	assert.Equal(t, models.StatusUploaded, got.Status)
	assert.False(t, f.registry.IsProcessing("5"))
	assert.Zero(t, f.backend.count("extract"))
	assert.Equal(t, 1, f.events.count(interfaces.EventProcessingStartFailed))

	f.backend.downloadErr = nil
	require.NoError(t, f.registry.Process(context.Background(), "5"), "a rolled back document is re-triable")
}

func TestProcess_NonExtractableCompletesWithoutNetwork(t *testing.T) {
	f := newFixture(t, extractConfig(),
		doc("1", "photo.png", models.StatusUploaded),
		doc("2", "notes.unknownext", models.StatusUploaded),
	)

	require.NoError(t, f.registry.Process(context.Background(), "1"))
	require.NoError(t, f.registry.Process(context.Background(), "2"))

	assert.Zero(t, f.backend.total())
	for _, id := range []models.DocumentID{"1", "2"} {
		got, _ := f.registry.Get(id)
		assert.Equal(t, models.StatusCompleted, got.Status)
		assert.Nil(t, got.WordCount)
	}
	assert.Empty(t, f.registry.ProcessingIDs())
}

func TestRefreshDuringInFlightProcessKeepsRecord(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("5", "ledger.pdf", models.StatusUploaded), doc("6", "other.pdf", models.StatusCompleted))

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.extract = func(string, []byte) (*models.ExtractionResult, error) {
		close(started)
		<-release
		return &models.ExtractionResult{WordCount: 7}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.registry.Process(context.Background(), "5") }()
	<-started

	// snapshot momentarily lacks record 5
	f.backend.setList(doc("6", "other.pdf", models.StatusCompleted))
	require.NoError(t, f.registry.Refresh(context.Background()))
	got, ok := f.registry.Get("5")
	require.True(t, ok, "in-flight record survives a snapshot that omits it")
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.True(t, f.registry.IsProcessing("5"))

	// snapshot still reports the stale uploaded status
	f.backend.setList(doc("5", "ledger.pdf", models.StatusUploaded), doc("6", "other.pdf", models.StatusCompleted))
	require.NoError(t, f.registry.Refresh(context.Background()))
	got, _ = f.registry.Get("5")
	assert.Equal(t, models.StatusProcessing, got.Status)

	close(release)
	require.NoError(t, <-done)
	got, _ = f.registry.Get("5")
	assert.Equal(t, models.StatusCompleted, got.Status)
	requireValidStatuses(t, f.registry)
}

func TestProcess_ServerModeSchedulesDelayedRefreshes(t *testing.T) {
	f := newFixture(t, serverConfig(10*time.Millisecond, 20*time.Millisecond, 30*time.Millisecond),
		doc("5", "a.pdf", models.StatusUploaded))

	require.NoError(t, f.registry.Process(context.Background(), "5"))
	assert.Equal(t, 1, f.backend.count("process"))
	assert.Equal(t, 1, f.events.count(interfaces.EventProcessingStarted))

	got, _ := f.registry.Get("5")
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.True(t, f.registry.IsProcessing("5"))

	assert.Eventually(t, func() bool {
		return f.backend.count("list") == 3 && !f.registry.IsProcessing("5")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, f.registry.PendingTimers())
}

func TestProcess_ServerModeLastRefreshAppliesServerStatus(t *testing.T) {
	f := newFixture(t, serverConfig(10*time.Millisecond, 20*time.Millisecond, 30*time.Millisecond),
		doc("5", "a.pdf", models.StatusUploaded))

	// The backend never reports progress for 5
	require.NoError(t, f.registry.Process(context.Background(), "5"))

	require.Eventually(t, func() bool {
		got, _ := f.registry.Get("5")
		return f.backend.count("list") == 3 && got.Status == models.StatusUploaded
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, f.registry.IsProcessing("5"))
	assert.Zero(t, f.registry.PendingTimers())

	// The document can be processed again
	require.NoError(t, f.registry.Process(context.Background(), "5"))
	assert.Equal(t, 2, f.backend.count("process"))
	requireValidStatuses(t, f.registry)
}

func TestProcess_ServerModeFailedLastRefreshRestoresUploaded(t *testing.T) {
	f := newFixture(t, serverConfig(10*time.Millisecond), doc("5", "a.pdf", models.StatusUploaded))
	f.backend.mu.Lock()
	f.backend.listErr = errBackendDown
	f.backend.mu.Unlock()

	require.NoError(t, f.registry.Process(context.Background(), "5"))

	require.Eventually(t, func() bool {
		got, _ := f.registry.Get("5")
		return f.backend.count("list") == 1 && got.Status == models.StatusUploaded
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, f.registry.IsProcessing("5"))
}

func TestProcess_ServerModeAcceptsServerProgress(t *testing.T) {
	f := newFixture(t, serverConfig(time.Hour), doc("5", "a.pdf", models.StatusUploaded))

	require.NoError(t, f.registry.Process(context.Background(), "5"))

	f.backend.setList(doc("5", "a.pdf", models.StatusCompleted))
	require.NoError(t, f.registry.Refresh(context.Background()))

	got, _ := f.registry.Get("5")
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.False(t, f.registry.IsProcessing("5"))
}

func TestProcess_ServerModeStartFailure(t *testing.T) {
	f := newFixture(t, serverConfig(time.Hour), doc("5", "a.pdf", models.StatusUploaded))
	f.backend.processErr = errBackendDown

	err := f.registry.Process(context.Background(), "5")
	require.ErrorIs(t, err, models.ErrProcessingStartFailed)

	got, _ := f.registry.Get("5")
	assert.Equal(t, models.StatusUploaded, got.Status)
	assert.False(t, f.registry.IsProcessing("5"))
	assert.Zero(t, f.registry.PendingTimers())
	assert.Equal(t, 1, f.events.count(interfaces.EventProcessingStartFailed))
}

func TestClose_StopsDelayedRefreshes(t *testing.T) {
	f := newFixture(t, serverConfig(50*time.Millisecond, time.Hour, 2*time.Hour), doc("5", "a.pdf", models.StatusUploaded))

	require.NoError(t, f.registry.Process(context.Background(), "5"))
	assert.Equal(t, 3, f.registry.PendingTimers())

	require.NoError(t, f.registry.Close())
	assert.Zero(t, f.registry.PendingTimers())

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, f.backend.count("list"), "no delayed work after close")
}

func TestProcessAllUploaded(t *testing.T) {
	f := newFixture(t, extractConfig(),
		doc("1", "a.png", models.StatusUploaded),
		doc("2", "b.pdf", models.StatusCompleted),
		doc("3", "c.pdf", models.StatusUploaded),
		doc("4", "d.pdf", models.StatusUploaded),
	)
	f.backend.extract = func(filename string, _ []byte) (*models.ExtractionResult, error) {
		if strings.HasPrefix(filename, "d") {
			return nil, errBackendDown
		}
		return &models.ExtractionResult{WordCount: 3}, nil
	}

	started, err := f.registry.ProcessAllUploaded(context.Background())
	assert.Equal(t, 2, started)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProcessingStartFailed)

	statuses := map[models.DocumentID]models.DocumentStatus{}
	for _, d := range f.registry.Documents() {
		statuses[d.ID] = d.Status
	}
	assert.Equal(t, map[models.DocumentID]models.DocumentStatus{
		"1": models.StatusCompleted,
		"2": models.StatusCompleted,
		"3": models.StatusCompleted,
		"4": models.StatusUploaded,
	}, statuses)
	assert.Equal(t, []string{"c.pdf", "d.pdf"}, f.backend.extracted)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("1", "a.pdf", models.StatusCompleted), doc("2", "b.pdf", models.StatusUploaded))
	f.backend.setList(doc("2", "b.pdf", models.StatusUploaded))

	require.NoError(t, f.registry.Delete(context.Background(), "1"))

	_, ok := f.registry.Get("1")
	assert.False(t, ok)
	assert.Len(t, f.registry.Documents(), 1)
	assert.Equal(t, 1, f.backend.count("delete"))
	assert.Equal(t, 1, f.backend.count("list"), "delete triggers a refresh")
	assert.Equal(t, 1, f.events.count(interfaces.EventDocumentDeleted))
}

func TestDelete_FailureKeepsRecord(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("1", "a.pdf", models.StatusCompleted))
	f.backend.deleteErr = errBackendDown

	err := f.registry.Delete(context.Background(), "1")
	require.ErrorIs(t, err, models.ErrDeleteFailed)

	_, ok := f.registry.Get("1")
	assert.True(t, ok)
	assert.Zero(t, f.backend.count("list"))
	assert.Equal(t, 1, f.events.count(interfaces.EventDeleteFailed))
}

func TestDownload_RequiresCompletedWithoutNetwork(t *testing.T) {
	for _, status := range []models.DocumentStatus{models.StatusUploaded, models.StatusProcessing, models.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, extractConfig(), doc("1", "a.pdf", status))

			_, err := f.registry.Download(context.Background(), "1")
			require.ErrorIs(t, err, models.ErrNotReady)
			assert.Zero(t, f.backend.total())
		})
	}
}

func TestDownload_NoExtractedText(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("1", "a.pdf", models.StatusCompleted))

	for _, text := range []string{"", "   ", "No text extracted yet."} {
		f.backend.detail = &models.DocumentDetail{ID: "1", Filename: "a.pdf", ExtractedText: text}
		_, err := f.registry.Download(context.Background(), "1")
		assert.ErrorIs(t, err, models.ErrNoExtractedText, "text %q", text)
	}
}

func TestDownload_ProducesTextReport(t *testing.T) {
	d := doc("1", "statement.pdf", models.StatusCompleted)
	d.DocumentType = "bank_statement"
	f := newFixture(t, extractConfig(), d)
	f.backend.detail = &models.DocumentDetail{ID: "1", Filename: "statement.pdf", ExtractedText: "Balance 100", WordCount: 2}

	artifact, err := f.registry.Download(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "statement_extracted.txt", artifact.Filename)
	assert.Contains(t, string(artifact.Data), "Document Type: bank_statement\n")
	assert.True(t, strings.HasSuffix(string(artifact.Data), "\n\nBalance 100"))
	assert.Equal(t, 1, f.backend.count("detail"))

	csv, err := f.registry.Export(context.Background(), "1", export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "statement_extracted.csv", csv.Filename)
}

func TestDownload_DetailFailure(t *testing.T) {
	f := newFixture(t, extractConfig(), doc("1", "a.pdf", models.StatusCompleted))
	f.backend.detailErr = models.ErrNetworkFailure

	_, err := f.registry.Download(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNetworkFailure))
}
