package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/docintel/internal/models"
)

const reportRule = "========================================"

// TextReport renders the header block followed by the extracted text.
func TextReport(record models.DocumentRecord, detail *models.DocumentDetail, now time.Time) Artifact {
	documentType := record.DocumentType
	if documentType == "" {
		documentType = "Unknown"
	}

	confidence := "N/A"
	if record.Confidence != nil && *record.Confidence != 0 {
		confidence = formatNumber(*record.Confidence)
	}

	wordCount := "N/A"
	if detail.WordCount != 0 {
		wordCount = strconv.Itoa(detail.WordCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OCR Extraction Results for: %s\n", record.Filename)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Document Type: %s\n", documentType)
	fmt.Fprintf(&b, "Status: %s\n", record.Status)
	fmt.Fprintf(&b, "Confidence: %s%%\n", confidence)
	fmt.Fprintf(&b, "Word Count: %s\n", wordCount)
	b.WriteString("\n")
	b.WriteString(reportRule + "\n")
	b.WriteString("EXTRACTED TEXT:\n")
	b.WriteString(reportRule + "\n")
	b.WriteString("\n")
	b.WriteString(detail.ExtractedText)

	return Artifact{
		Filename:    ExtractedFilename(record.Filename, "txt"),
		ContentType: ContentTypeText,
		Data:        []byte(b.String()),
	}
}

// RawText returns the extracted text alone.
func RawText(filename string, detail *models.DocumentDetail) Artifact {
	return Artifact{
		Filename:    ExtractedFilename(filename, "txt"),
		ContentType: ContentTypeText,
		Data:        []byte(detail.ExtractedText),
	}
}
