package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ternarybob/docintel/internal/models"
)

type filePart struct {
	name     string
	mimeType string
	data     []byte
}

// partFromFile loads the content of a local file, preferring in-memory data.
func partFromFile(file models.LocalFile) (filePart, error) {
	data := file.Data
	if data == nil {
		content, err := os.ReadFile(file.Path)
		if err != nil {
			return filePart{}, fmt.Errorf("failed to read %s: %w", file.Path, err)
		}
		data = content
	}
	return filePart{name: file.Name, mimeType: file.MIMEType, data: data}, nil
}

// buildMultipart encodes parts under one form field.
func buildMultipart(field string, parts []filePart) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, p := range parts {
		mimeType := p.mimeType
		if mimeType == "" {
			mimeType = mimetype.Detect(p.data).String()
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(p.name)))
		header.Set("Content-Type", mimeType)

		w, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
