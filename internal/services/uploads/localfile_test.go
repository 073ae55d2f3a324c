package uploads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePDF(t *testing.T, path string, pages int) {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Cell(40, 10, "page")
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
}

func TestLoadLocalFile_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	writePDF(t, path, 2)

	file, err := LoadLocalFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.MIMEType)
	assert.Equal(t, 2, file.PageCount)
	assert.Positive(t, file.Size)
	assert.Nil(t, file.Data)
}

func TestLoadLocalFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	file, err := LoadLocalFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", file.MIMEType)
	assert.Zero(t, file.PageCount)
	assert.Equal(t, int64(11), file.Size)
}

func TestLoadLocalFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadLocalFile(dir)
	assert.Error(t, err)

	_, err = LoadLocalFile(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestLocalFileFromBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	writePDF(t, path, 3)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	file := LocalFileFromBytes("uploads/scan.pdf", data)
	assert.Equal(t, "scan.pdf", file.Name)
	assert.Equal(t, 3, file.PageCount)
	assert.Equal(t, int64(len(data)), file.Size)
	assert.Equal(t, data, file.Data)
}
