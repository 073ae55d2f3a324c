package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docintel/internal/app"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/export"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents held by the backend",
	Long:  `Fetches the document list. When the backend is unreachable the last cached list is shown instead.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var processCmd = &cobra.Command{
	Use:   "process [id]",
	Short: "Run OCR processing for an uploaded document",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProcess,
}

var viewCmd = &cobra.Command{
	Use:   "view [id]",
	Short: "Show the extracted text of a completed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

var downloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Save the extraction result of a completed document",
	Long:  `Renders the extraction result locally as a text report (txt), raw text (raw), a metadata row (csv) or a PDF report (pdf).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document on the backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	listSearch   string
	listOutput   string
	processAll   bool
	viewEntities bool
	downloadDir  string
	downloadFmt  string
	deleteYes    bool
)

func init() {
	listCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive filename filter")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", outputTable, "Output format: table, json or yaml")

	processCmd.Flags().BoolVar(&processAll, "all", false, "Process every uploaded document")

	viewCmd.Flags().BoolVar(&viewEntities, "entities", false, "Include extracted entities")

	downloadCmd.Flags().StringVar(&downloadDir, "out", ".", "Directory to write the file to")
	downloadCmd.Flags().StringVar(&downloadFmt, "format", export.FormatReport, "Artifact format: txt, raw, csv or pdf")

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

// loadRegistry opens the app and fetches the current document list
func loadRegistry(withCache bool) (*app.App, error) {
	application, err := openApp(withCache)
	if err != nil {
		return nil, err
	}

	if withCache {
		if _, err := application.Registry.LoadCached(application.Context()); err != nil {
			logger.Warn().Err(err).Msg("Failed to load cached snapshot")
		}
	}

	if err := application.Registry.Refresh(application.Context()); err != nil {
		if withCache && len(application.Registry.Documents()) > 0 {
			logger.Warn().Err(err).Msg("Backend unreachable, showing cached documents")
			return application, nil
		}
		application.Close()
		return nil, err
	}
	return application, nil
}

func runList(cmd *cobra.Command, args []string) error {
	application, err := loadRegistry(true)
	if err != nil {
		return err
	}
	defer application.Close()

	docs := application.Registry.Search(listSearch)
	out := cmd.OutOrStdout()

	if listOutput != outputTable {
		return writeStructured(out, listOutput, docs)
	}

	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents")
		return nil
	}
	if err := writeDocumentTable(out, docs, application.Registry.IsProcessing); err != nil {
		return err
	}

	if last, fromCache := application.Registry.LastRefresh(); fromCache {
		fmt.Fprintf(out, "\nCached list from %s (backend unreachable)\n", last.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processAll == (len(args) == 1) {
		return errors.New("specify a document id or --all")
	}

	application, err := loadRegistry(false)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()

	if processAll {
		started, err := application.Registry.ProcessAllUploaded(ctx)
		fmt.Fprintf(out, "Started %d document(s)\n", started)
		return err
	}

	id := models.DocumentID(args[0])
	if err := application.Registry.Process(ctx, id); err != nil {
		return err
	}

	rec, _ := application.Registry.Get(id)
	switch rec.Status {
	case models.StatusCompleted:
		fmt.Fprintf(out, "Processed %s: %s words, %s confidence\n", rec.Filename, intOrDash(rec.WordCount), percent(rec.Confidence))
	default:
		fmt.Fprintf(out, "Processing started for %s\n", orDash(rec.Filename))
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	application, err := loadRegistry(false)
	if err != nil {
		return err
	}
	defer application.Close()

	session, err := application.Viewer.Open(application.Context(), models.DocumentID(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", session.Record.Filename, session.Record.ID)
	fmt.Fprintf(out, "Words: %d  Confidence: %.1f%%  Processing time: %.2fs\n\n",
		session.Detail.WordCount, session.Detail.Confidence, session.Detail.ProcessingTime)

	if text := strings.TrimSpace(session.Detail.ExtractedText); text != "" {
		fmt.Fprintln(out, text)
	} else {
		fmt.Fprintln(out, "No text extracted")
	}

	if viewEntities {
		fmt.Fprintln(out)
		if session.Entities.Empty() {
			fmt.Fprintln(out, "No entities")
			return nil
		}
		for _, c := range session.Entities.Categories() {
			fmt.Fprintf(out, "%s: %s\n", c.Name, strings.Join(c.Values, ", "))
		}
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	application, err := loadRegistry(false)
	if err != nil {
		return err
	}
	defer application.Close()

	artifact, err := application.Registry.Export(application.Context(), models.DocumentID(args[0]), downloadFmt)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", downloadDir, err)
	}
	path := filepath.Join(downloadDir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(artifact.Data))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := models.DocumentID(args[0])

	application, err := loadRegistry(false)
	if err != nil {
		return err
	}
	defer application.Close()

	name := id.String()
	if rec, ok := application.Registry.Get(id); ok {
		name = rec.Filename
	}

	if !deleteYes && !confirm(cmd, fmt.Sprintf("Delete %s? [y/N] ", name)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return nil
	}

	if err := application.Registry.Delete(application.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
	return nil
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
