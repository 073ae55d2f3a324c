package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/services/events"
)

func startWebSocketServer(t *testing.T, handler *WebSocketHandler) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForClients(t *testing.T, handler *WebSocketHandler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return handler.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_HelloCarriesServerInstanceID(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())
	conn := dial(t, startWebSocketServer(t, handler))

	msg := readMessage(t, conn)
	assert.Equal(t, "hello", msg.Type)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, handler.ServerInstanceID(), payload["serverInstanceId"])
}

func TestWebSocket_BroadcastFansOut(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())
	url := startWebSocketServer(t, handler)

	const numClients = 4
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = dial(t, url)
		readMessage(t, conns[i]) // hello
	}
	waitForClients(t, handler, numClients)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.Broadcast("upload_status", map[string]string{"status": "success"})
		}()
	}
	wg.Wait()

	for _, conn := range conns {
		for i := 0; i < 3; i++ {
			msg := readMessage(t, conn)
			assert.Equal(t, "upload_status", msg.Type)
		}
	}
}

func TestWebSocket_CloseDisconnectsClients(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())
	conn := dial(t, startWebSocketServer(t, handler))
	readMessage(t, conn)
	waitForClients(t, handler, 1)

	handler.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	waitForClients(t, handler, 0)
}

func TestEventSubscriber_BroadcastsNotifications(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	handler := NewWebSocketHandler(logger)
	subscriber := NewEventSubscriber(handler, eventService, logger, &common.WebSocketConfig{})
	defer subscriber.Close()

	conn := dial(t, startWebSocketServer(t, handler))
	readMessage(t, conn)
	waitForClients(t, handler, 1)

	event := events.NewEvent(interfaces.EventProcessingStartFailed, events.Notification{
		Level:      events.LevelError,
		Message:    "Failed to start processing",
		DocumentID: "5",
	})
	require.NoError(t, eventService.PublishSync(context.Background(), event))

	msg := readMessage(t, conn)
	assert.Equal(t, string(interfaces.EventProcessingStartFailed), msg.Type)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5", payload["document_id"])
	assert.Equal(t, "error", payload["level"])
}

func TestEventSubscriber_Whitelist(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewEventSubscriber(NewWebSocketHandler(logger), nil, logger, &common.WebSocketConfig{
		AllowedEvents: []string{"upload_status"},
	})

	assert.True(t, subscriber.shouldBroadcastEvent("upload_status"))
	assert.False(t, subscriber.shouldBroadcastEvent("snapshot_updated"))
}

func TestEventSubscriber_Throttle(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewEventSubscriber(NewWebSocketHandler(logger), nil, logger, &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{
			"snapshot_updated": "1h",
			"upload_status":    "not-a-duration",
		},
	})

	assert.True(t, subscriber.shouldBroadcastEvent("snapshot_updated"))
	assert.False(t, subscriber.shouldBroadcastEvent("snapshot_updated"))

	// Malformed intervals disable throttling for that type
	assert.True(t, subscriber.shouldBroadcastEvent("upload_status"))
	assert.True(t, subscriber.shouldBroadcastEvent("upload_status"))
}

func TestEventSubscriber_CloseUnsubscribes(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	handler := NewWebSocketHandler(logger)
	subscriber := NewEventSubscriber(handler, eventService, logger, nil)

	conn := dial(t, startWebSocketServer(t, handler))
	readMessage(t, conn)
	waitForClients(t, handler, 1)

	subscriber.Close()
	require.NoError(t, eventService.PublishSync(context.Background(),
		events.NewEvent(interfaces.EventSnapshotUpdated, events.Notification{Message: "refreshed"})))

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
