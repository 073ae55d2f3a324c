package models

import "errors"

// Failure taxonomy shared by the transport client and the view-models.
// Callers match with errors.Is; concrete errors wrap these with context.
var (
	// ErrNetworkFailure means the request never completed.
	ErrNetworkFailure = errors.New("network failure")
	// ErrInvalidTransition means an operation was attempted against a status that does not allow it.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotReady means the document has not finished processing.
	ErrNotReady = errors.New("document processing is not complete")
	// ErrNoExtractedText means the backend has no text for a completed document.
	ErrNoExtractedText = errors.New("no extracted text available")
	// ErrDeleteFailed means the backend refused or failed the delete.
	ErrDeleteFailed = errors.New("failed to delete document")
	// ErrProcessingStartFailed means processing could not be started or the extraction failed.
	ErrProcessingStartFailed = errors.New("failed to start processing")
	// ErrDocumentNotFound means the id is not in the current document list.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidPayload means a backend response failed schema validation.
	ErrInvalidPayload = errors.New("invalid backend payload")
)
