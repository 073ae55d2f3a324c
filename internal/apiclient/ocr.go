package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/docintel/internal/models"
)

// ExtractText submits file content to the extraction endpoint on the legacy base URL.
func (c *Client) ExtractText(ctx context.Context, filename string, data []byte) (*models.ExtractionResult, error) {
	body, contentType, err := buildMultipart("file", []filePart{{name: filename, data: data}})
	if err != nil {
		return nil, err
	}

	var result models.ExtractionResult
	err = c.call(ctx, request{
		method:      http.MethodPost,
		base:        c.legacyBaseURL,
		path:        "/api/ocr/process",
		body:        body,
		contentType: contentType,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}
	return &result, nil
}

// UploadDocument uploads one local file.
func (c *Client) UploadDocument(ctx context.Context, file models.LocalFile, useAdvanced bool) (*models.ProcessResponse, error) {
	part, err := partFromFile(file)
	if err != nil {
		return nil, err
	}

	body, contentType, err := buildMultipart("file", []filePart{part})
	if err != nil {
		return nil, err
	}

	var result models.ProcessResponse
	err = c.call(ctx, request{
		method:      http.MethodPost,
		base:        c.baseURL,
		path:        "/api/v1/upload",
		params:      advancedParams(useAdvanced),
		body:        body,
		contentType: contentType,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}
	return &result, nil
}

// BatchUpload uploads several local files in one request.
func (c *Client) BatchUpload(ctx context.Context, files []models.LocalFile, useAdvanced bool) (*models.BatchResponse, error) {
	if len(files) == 0 {
		return &models.BatchResponse{Results: []models.ProcessResponse{}}, nil
	}

	parts := make([]filePart, 0, len(files))
	for _, f := range files {
		part, err := partFromFile(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	body, contentType, err := buildMultipart("files", parts)
	if err != nil {
		return nil, err
	}

	var result models.BatchResponse
	err = c.call(ctx, request{
		method:      http.MethodPost,
		base:        c.baseURL,
		path:        "/api/ocr/batch",
		params:      advancedParams(useAdvanced),
		body:        body,
		contentType: contentType,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to batch upload %d files: %w", len(files), err)
	}
	return &result, nil
}

// Health pings the OCR service.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.get(ctx, c.baseURL, "/api/ocr/health", nil, &status); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &status, nil
}

func advancedParams(useAdvanced bool) url.Values {
	params := url.Values{}
	params.Set("use_advanced", strconv.FormatBool(useAdvanced))
	return params
}
