package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// PDFRenderer turns a document report into a PDF via a markdown intermediate.
type PDFRenderer struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

// NewPDFRenderer creates a renderer.
func NewPDFRenderer(logger arbor.ILogger) *PDFRenderer {
	return &PDFRenderer{
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// ReportMarkdown builds the markdown version of the text report.
func ReportMarkdown(record models.DocumentRecord, detail *models.DocumentDetail, now time.Time) string {
	documentType := record.DocumentType
	if documentType == "" {
		documentType = "Unknown"
	}
	confidence := "N/A"
	if record.Confidence != nil && *record.Confidence != 0 {
		confidence = formatNumber(*record.Confidence) + "%"
	}
	wordCount := "N/A"
	if detail.WordCount != 0 {
		wordCount = fmt.Sprintf("%d", detail.WordCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# OCR Extraction Results for: %s\n\n", record.Filename)
	fmt.Fprintf(&b, "- **Generated:** %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Document Type:** %s\n", documentType)
	fmt.Fprintf(&b, "- **Status:** %s\n", record.Status)
	fmt.Fprintf(&b, "- **Confidence:** %s\n", confidence)
	fmt.Fprintf(&b, "- **Word Count:** %s\n", wordCount)
	if detail.FileSize != "" {
		fmt.Fprintf(&b, "- **File Size:** %s\n", detail.FileSize)
	}
	b.WriteString("\n---\n\n## Extracted Text\n\n")

	fence := codeFence(detail.ExtractedText)
	b.WriteString(fence + "\n")
	b.WriteString(strings.TrimRight(detail.ExtractedText, "\n"))
	b.WriteString("\n" + fence + "\n")
	return b.String()
}

// Report renders the PDF artifact for one document.
func (r *PDFRenderer) Report(record models.DocumentRecord, detail *models.DocumentDetail, now time.Time) (Artifact, error) {
	data, err := r.Render(ReportMarkdown(record, detail, now), record.Filename)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Filename:    ExtractedFilename(record.Filename, "pdf"),
		ContentType: ContentTypePDF,
		Data:        data,
	}, nil
}

// Render converts markdown to PDF bytes.
func (r *PDFRenderer) Render(markdown, title string) ([]byte, error) {
	r.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("title", title).
		Msg("Rendering PDF report")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("docintel", true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	source := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(source))

	w := &pdfWriter{
		pdf:       pdf,
		source:    source,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		font:      "Arial",
		size:      9,
	}
	if err := ast.Walk(doc, w.walk); err != nil {
		r.logger.Error().Err(err).Msg("Failed to render PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error().Err(err).Msg("Failed to write PDF output")
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	r.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF rendered")
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	font      string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (w *pdfWriter) updateFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.font, style, w.size)
}

func (w *pdfWriter) write(s string) {
	w.pdf.Write(5, w.translate(s))
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			case 3:
				size = 11
			}
			w.pdf.SetFont(w.font, "B", size)
		} else {
			w.pdf.Ln(8)
			w.updateFont()
		}
	case *ast.Paragraph:
		if !entering && w.listLevel == 0 {
			w.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			w.write(string(node.Segment.Value(w.source)))
			if node.HardLineBreak() {
				w.pdf.Ln(5)
			} else if node.SoftLineBreak() {
				w.write(" ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.updateFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", w.size)
			w.write(string(node.Text(w.source)))
			w.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(7)
			}
		}
	case *ast.ListItem:
		if entering {
			if node.PreviousSibling() != nil {
				w.pdf.Ln(5)
			}
			w.pdf.SetX(10 + float64(w.listLevel)*5)
			w.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(10, w.pdf.GetY(), 200, w.pdf.GetY())
			w.pdf.Ln(4)
		}
	}
	return ast.WalkContinue, nil
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	w.pdf.SetFont("Courier", "", 8)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		txt := strings.TrimRight(string(line.Value(w.source)), "\r\n")
		if txt == "" {
			txt = " "
		}
		w.pdf.MultiCell(0, 4, w.translate(txt), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.updateFont()
	w.pdf.Ln(2)
}

// codeFence returns a backtick fence longer than any backtick run inside s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, c := range s {
		if c == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}
