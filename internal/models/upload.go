package models

import (
	"path/filepath"
	"strings"
	"time"
)

// UploadStatus is the state of one queued upload.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// Terminal reports whether the upload has finished, successfully or not.
func (s UploadStatus) Terminal() bool {
	return s == UploadSuccess || s == UploadError
}

// LocalFile is a file selected for upload.
type LocalFile struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MIMEType  string `json:"mime_type,omitempty"`
	PageCount int    `json:"page_count,omitempty"`

	// Data holds the content for files that do not live on disk.
	Data []byte `json:"-"`
}

// Extension returns the lower-case extension including the dot.
func (f LocalFile) Extension() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// SizeKB returns the file size in kilobytes, as shown next to queued files.
func (f LocalFile) SizeKB() float64 {
	return float64(f.Size) / 1024
}

// UploadItem is one entry of the upload queue.
type UploadItem struct {
	ID        string           `json:"id"`
	File      LocalFile        `json:"file"`
	Status    UploadStatus     `json:"status"`
	Result    *ProcessResponse `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	AddedAt   time.Time        `json:"added_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with the queue.
func (u UploadItem) Clone() UploadItem {
	out := u
	if u.Result != nil {
		r := *u.Result
		out.Result = &r
	}
	return out
}
