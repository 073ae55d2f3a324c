package events

import (
	"time"

	"github.com/ternarybob/docintel/internal/interfaces"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is the payload of every event published by the view-models.
type Notification struct {
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	DocumentID string    `json:"document_id,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Status     string    `json:"status,omitempty"`
	WordCount  *int      `json:"word_count,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent wraps a notification in an event, stamping the time.
func NewEvent(eventType interfaces.EventType, n Notification) interfaces.Event {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return interfaces.Event{Type: eventType, Payload: n}
}
