package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/interfaces"
)

func TestPublishSync_WaitsForHandlers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls int32
	require.NoError(t, service.Subscribe(interfaces.EventDocumentDeleted, func(ctx context.Context, event interfaces.Event) error {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := service.PublishSync(context.Background(), NewEvent(interfaces.EventDocumentDeleted, Notification{
		Level:      LevelSuccess,
		Message:    "Document deleted",
		DocumentID: "5",
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPublishSync_ReportsHandlerErrors(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventDeleteFailed, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("boom")
	}))

	err := service.PublishSync(context.Background(), NewEvent(interfaces.EventDeleteFailed, Notification{Level: LevelError}))
	assert.Error(t, err)
}

func TestPublishSync_RecoversPanics(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventRefreshFailed, func(ctx context.Context, event interfaces.Event) error {
		panic("handler exploded")
	}))

	assert.NotPanics(t, func() {
		_ = service.PublishSync(context.Background(), NewEvent(interfaces.EventRefreshFailed, Notification{}))
	})
}

func TestPublish_Async(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, service.Subscribe(interfaces.EventUploadStatus, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	require.NoError(t, service.Publish(context.Background(), NewEvent(interfaces.EventUploadStatus, Notification{Filename: "a.pdf", Status: "uploading"})))

	select {
	case event := <-received:
		n, ok := event.Payload.(Notification)
		require.True(t, ok)
		assert.Equal(t, "a.pdf", n.Filename)
		assert.False(t, n.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

var unsubscribeCalls int32

func countingHandler(ctx context.Context, event interfaces.Event) error {
	atomic.AddInt32(&unsubscribeCalls, 1)
	return nil
}

func TestUnsubscribe(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventSnapshotUpdated, countingHandler))
	require.NoError(t, service.Unsubscribe(interfaces.EventSnapshotUpdated, countingHandler))

	require.NoError(t, service.PublishSync(context.Background(), NewEvent(interfaces.EventSnapshotUpdated, Notification{})))
	assert.Equal(t, int32(0), atomic.LoadInt32(&unsubscribeCalls))

	assert.Error(t, service.Unsubscribe(interfaces.EventSnapshotUpdated, countingHandler))
}

func TestSubscribe_NilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	assert.Error(t, service.Subscribe(interfaces.EventSnapshotUpdated, nil))
}
