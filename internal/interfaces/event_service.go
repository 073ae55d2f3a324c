package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventProcessingStartFailed fires once per failed process attempt
	EventProcessingStartFailed EventType = "processing_start_failed"
	// EventProcessingStarted fires when the backend accepted a process request
	EventProcessingStarted EventType = "processing_started"
	// EventProcessingCompleted fires when extraction finished for a document
	EventProcessingCompleted EventType = "processing_completed"
	// EventDocumentDeleted fires after a successful delete
	EventDocumentDeleted EventType = "document_deleted"
	// EventDeleteFailed fires when the backend refused a delete
	EventDeleteFailed EventType = "delete_failed"
	// EventRefreshFailed fires when a document list fetch failed
	EventRefreshFailed EventType = "refresh_failed"
	// EventSnapshotUpdated fires after a refresh was applied to the registry
	EventSnapshotUpdated EventType = "snapshot_updated"
	// EventUploadStatus fires on every upload item transition
	EventUploadStatus EventType = "upload_status"
	// EventInboxFileQueued fires when the inbox watcher queued a file
	EventInboxFileQueued EventType = "inbox_file_queued"
)

// AllEventTypes lists every event type published by docintel
var AllEventTypes = []EventType{
	EventProcessingStartFailed,
	EventProcessingStarted,
	EventProcessingCompleted,
	EventDocumentDeleted,
	EventDeleteFailed,
	EventRefreshFailed,
	EventSnapshotUpdated,
	EventUploadStatus,
	EventInboxFileQueued,
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
