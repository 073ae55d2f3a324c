package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/docintel/internal/models"
)

// ListDocuments retrieves up to limit documents, newest first.
func (c *Client) ListDocuments(ctx context.Context, limit int) (*models.DocumentList, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var list models.DocumentList
	if err := c.get(ctx, c.baseURL, "/api/v1/documents", params, &list); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if list.Documents == nil {
		list.Documents = []models.DocumentRecord{}
	}
	return &list, nil
}

// GetDocument retrieves the full detail of one document, including extracted text.
func (c *Client) GetDocument(ctx context.Context, id models.DocumentID) (*models.DocumentDetail, error) {
	var detail models.DocumentDetail
	if err := c.get(ctx, c.baseURL, documentPath(id, ""), nil, &detail); err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}
	return &detail, nil
}

// GetEntities retrieves the named entities of one document.
// A nil bundle means the backend did not compute entities.
func (c *Client) GetEntities(ctx context.Context, id models.DocumentID) (*models.EntityBundle, error) {
	var resp models.EntityResponse
	if err := c.get(ctx, c.baseURL, documentPath(id, "/entities"), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch entities for document %s: %w", id, err)
	}
	resp.Entities.Dedupe()
	return resp.Entities, nil
}

// DownloadDocument retrieves the raw uploaded artifact from the legacy base URL.
func (c *Client) DownloadDocument(ctx context.Context, id models.DocumentID) ([]byte, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		base:   c.legacyBaseURL,
		path:   documentPath(id, "/download"),
		accept: "*/*",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download document %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download of document %s: %w: %v", id, models.ErrNetworkFailure, err)
	}
	return data, nil
}

// DeleteDocument deletes one document on the backend.
func (c *Client) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	var resp models.DeleteResponse
	if err := c.delete(ctx, c.baseURL, documentPath(id, ""), &resp); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// StartProcessing asks the backend to process a document asynchronously.
// Completion is only observable by listing documents again.
func (c *Client) StartProcessing(ctx context.Context, id models.DocumentID) error {
	path := "/api/v1/process/" + url.PathEscape(id.String())
	if err := c.post(ctx, c.baseURL, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to start processing document %s: %w", id, err)
	}
	return nil
}

// ExcelExportURL returns the spreadsheet export URL. The client never fetches it.
func (c *Client) ExcelExportURL() string {
	return c.baseURL + "/api/v1/documents/export/excel"
}
