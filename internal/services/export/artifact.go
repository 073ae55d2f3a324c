// Package export renders client-side artifacts from an already fetched document detail.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/docintel/internal/models"
)

// Content types of the produced artifacts
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypePDF  = "application/pdf"
)

// Format names accepted by ForFormat
const (
	FormatReport = "txt"
	FormatRaw    = "raw"
	FormatCSV    = "csv"
	FormatPDF    = "pdf"
)

// ErrUnknownFormat is returned by ForFormat for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Artifact is a file produced locally for the caller to persist.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BaseName strips the last extension from a filename.
func BaseName(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// ExtractedFilename returns "<base>_extracted.<ext>".
func ExtractedFilename(filename, ext string) string {
	return BaseName(filename) + "_extracted." + ext
}

// formatNumber renders a number without trailing zeros, matching how the dashboard prints values.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ForFormat renders the artifact named by format. The PDF renderer is only used for FormatPDF.
func ForFormat(format string, record models.DocumentRecord, detail *models.DocumentDetail, now time.Time, pdf *PDFRenderer) (Artifact, error) {
	switch strings.ToLower(format) {
	case FormatReport, "":
		return TextReport(record, detail, now), nil
	case FormatRaw:
		return RawText(record.Filename, detail), nil
	case FormatCSV:
		return CSV(record, detail), nil
	case FormatPDF:
		if pdf == nil {
			return Artifact{}, fmt.Errorf("pdf renderer not configured")
		}
		return pdf.Report(record, detail, now)
	default:
		return Artifact{}, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}
