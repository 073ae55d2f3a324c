package uploads

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ternarybob/docintel/internal/models"
)

const pdfMIME = "application/pdf"

// LoadLocalFile describes a file on disk for the queue. PDF page counts are
// filled in when the document can be parsed.
func LoadLocalFile(path string) (models.LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.LocalFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.LocalFile{}, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return models.LocalFile{}, fmt.Errorf("detect type of %s: %w", path, err)
	}

	file := models.LocalFile{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: mt.String(),
	}
	if isPDF(file.Name, mt) {
		if pages, err := api.PageCountFile(path); err == nil {
			file.PageCount = pages
		}
	}
	return file, nil
}

// LocalFileFromBytes describes an in-memory file, e.g. one received over HTTP.
func LocalFileFromBytes(name string, data []byte) models.LocalFile {
	mt := mimetype.Detect(data)
	file := models.LocalFile{
		Name:     filepath.Base(name),
		Size:     int64(len(data)),
		MIMEType: mt.String(),
		Data:     data,
	}
	if isPDF(file.Name, mt) {
		if pages, err := api.PageCount(bytes.NewReader(data), nil); err == nil {
			file.PageCount = pages
		}
	}
	return file
}

func isPDF(name string, mt *mimetype.MIME) bool {
	return mt.Is(pdfMIME) || strings.EqualFold(filepath.Ext(name), ".pdf")
}
