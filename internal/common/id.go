package common

import (
	"github.com/google/uuid"
)

// NewUploadID generates a unique upload queue item ID
// Format: upl_<uuid>
func NewUploadID() string {
	return "upl_" + uuid.New().String()
}

// NewClientID generates a unique websocket client ID
func NewClientID() string {
	return "ws_" + uuid.New().String()
}
