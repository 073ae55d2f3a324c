package export

import (
	"strconv"
	"strings"

	"github.com/ternarybob/docintel/internal/models"
)

const csvHeader = "Filename,Type,Status,Confidence,Word Count,Extracted Text"

var csvNewlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// CSV renders a single-row CSV in which every field is quoted.
func CSV(record models.DocumentRecord, detail *models.DocumentDetail) Artifact {
	fields := []string{
		record.Filename,
		record.FileType,
		string(record.Status),
		formatNumber(detail.Confidence) + "%",
		strconv.Itoa(detail.WordCount),
		csvNewlines.Replace(detail.ExtractedText),
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}

	data := csvHeader + "\n" + strings.Join(quoted, ",")
	return Artifact{
		Filename:    ExtractedFilename(record.Filename, "csv"),
		ContentType: ContentTypeCSV,
		Data:        []byte(data),
	}
}
