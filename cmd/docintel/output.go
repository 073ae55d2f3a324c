package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/docintel/internal/models"
)

// Output formats accepted by --output
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// writeStructured writes v as indented JSON or YAML. YAML goes through the
// JSON encoding so both formats share field names.
func writeStructured(w io.Writer, format string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	switch format {
	case outputJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case outputYAML:
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeDocumentTable renders the document list as aligned columns
func writeDocumentTable(w io.Writer, docs []models.DocumentRecord, processing func(models.DocumentID) bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tTYPE\tSTATUS\tCONFIDENCE\tWORDS\tUPLOADED")
	for _, d := range docs {
		status := string(d.Status)
		if processing != nil && processing(d.ID) {
			status += "*"
		}
		uploaded := "-"
		if ts, ok := d.Timestamp(); ok {
			uploaded = ts.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Filename, orDash(d.Extension()), status,
			percent(d.Confidence), intOrDash(d.WordCount), uploaded)
	}
	return tw.Flush()
}

// writeUploadTable renders the upload queue
func writeUploadTable(w io.Writer, items []models.UploadItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tSIZE\tSTATUS\tDETAIL")
	for i, item := range items {
		detail := item.Error
		if detail == "" && item.Result != nil {
			detail = item.Result.Message
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f KB\t%s\t%s\n", i, item.File.Name, item.File.SizeKB(), item.Status, orDash(detail))
	}
	return tw.Flush()
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
