package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/models"
)

func sampleRecord() models.DocumentRecord {
	conf := 92.5
	return models.DocumentRecord{
		ID:           "5",
		Filename:     "invoice.2024.pdf",
		FileType:     "pdf",
		Status:       models.StatusCompleted,
		DocumentType: "invoice",
		Confidence:   &conf,
	}
}

func sampleDetail() *models.DocumentDetail {
	return &models.DocumentDetail{
		ID:            "5",
		Filename:      "invoice.2024.pdf",
		ExtractedText: "Total due: \"42\"\nThank you",
		WordCount:     5,
		Confidence:    92.5,
		FileSize:      "1.2 MB",
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "invoice.2024", BaseName("invoice.2024.pdf"))
	assert.Equal(t, "README", BaseName("README"))
	assert.Equal(t, ".env", BaseName(".env"))
	assert.Equal(t, "scan_extracted.csv", ExtractedFilename("dir/scan.png", "csv"))
}

func TestTextReport(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC)
	a := TextReport(sampleRecord(), sampleDetail(), now)

	assert.Equal(t, "invoice.2024_extracted.txt", a.Filename)
	assert.Equal(t, ContentTypeText, a.ContentType)

	want := "OCR Extraction Results for: invoice.2024.pdf\n" +
		"Generated: 2024-03-01 14:05:00\n" +
		"Document Type: invoice\n" +
		"Status: completed\n" +
		"Confidence: 92.5%\n" +
		"Word Count: 5\n" +
		"\n" +
		"========================================\n" +
		"EXTRACTED TEXT:\n" +
		"========================================\n" +
		"\n" +
		"Total due: \"42\"\nThank you"
	assert.Equal(t, want, string(a.Data))
}

func TestTextReportFallbacks(t *testing.T) {
	record := sampleRecord()
	record.DocumentType = ""
	record.Confidence = nil
	detail := sampleDetail()
	detail.WordCount = 0

	out := string(TextReport(record, detail, time.Now()).Data)
	assert.Contains(t, out, "Document Type: Unknown\n")
	assert.Contains(t, out, "Confidence: N/A%\n")
	assert.Contains(t, out, "Word Count: N/A\n")
}

func TestRawText(t *testing.T) {
	a := RawText("scan.png", sampleDetail())
	assert.Equal(t, "scan_extracted.txt", a.Filename)
	assert.Equal(t, "Total due: \"42\"\nThank you", string(a.Data))
}

func TestCSV(t *testing.T) {
	a := CSV(sampleRecord(), sampleDetail())

	assert.Equal(t, "invoice.2024_extracted.csv", a.Filename)
	assert.Equal(t, ContentTypeCSV, a.ContentType)

	lines := strings.Split(string(a.Data), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Filename,Type,Status,Confidence,Word Count,Extracted Text", lines[0])
	assert.Equal(t, `"invoice.2024.pdf","pdf","completed","92.5%","5","Total due: ""42"" Thank you"`, lines[1])
}

func TestCodeFence(t *testing.T) {
	assert.Equal(t, "```", codeFence("plain"))
	assert.Equal(t, "````", codeFence("has ``` inside"))
}

func TestReportMarkdown(t *testing.T) {
	md := ReportMarkdown(sampleRecord(), sampleDetail(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(md, "# OCR Extraction Results for: invoice.2024.pdf\n"))
	assert.Contains(t, md, "- **Confidence:** 92.5%\n")
	assert.Contains(t, md, "- **File Size:** 1.2 MB\n")
	assert.Contains(t, md, "```\nTotal due: \"42\"\nThank you\n```\n")
}

func TestPDFReport(t *testing.T) {
	r := NewPDFRenderer(arbor.NewLogger())
	a, err := r.Report(sampleRecord(), sampleDetail(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "invoice.2024_extracted.pdf", a.Filename)
	assert.Equal(t, ContentTypePDF, a.ContentType)
	assert.True(t, bytes.HasPrefix(a.Data, []byte("%PDF-")))
}

func TestForFormat(t *testing.T) {
	now := time.Now()
	r := NewPDFRenderer(arbor.NewLogger())

	for format, name := range map[string]string{
		FormatReport: "invoice.2024_extracted.txt",
		FormatRaw:    "invoice.2024_extracted.txt",
		FormatCSV:    "invoice.2024_extracted.csv",
		FormatPDF:    "invoice.2024_extracted.pdf",
	} {
		a, err := ForFormat(format, sampleRecord(), sampleDetail(), now, r)
		require.NoError(t, err, format)
		assert.Equal(t, name, a.Filename, format)
	}

	_, err := ForFormat("xlsx", sampleRecord(), sampleDetail(), now, r)
	assert.Error(t, err)
	_, err = ForFormat(FormatPDF, sampleRecord(), sampleDetail(), now, nil)
	assert.Error(t, err)
}
