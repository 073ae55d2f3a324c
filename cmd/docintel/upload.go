package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docintel/internal/app"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/models"
	"github.com/ternarybob/docintel/internal/services/events"
	"github.com/ternarybob/docintel/internal/services/uploads"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload local files to the OCR backend",
	Long:  `Queues the given files and uploads them one at a time, or in a single batch request with --batch.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the document list fresh and print notifications",
	Long:  `Runs auto-refresh and, when uploads.inbox_dir is set, the inbox watcher. Notifications are printed until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	uploadAdvanced bool
	uploadBatch    bool
)

func init() {
	uploadCmd.Flags().BoolVar(&uploadAdvanced, "advanced", false, "Use the advanced OCR pipeline")
	uploadCmd.Flags().BoolVar(&uploadBatch, "batch", false, "Send all files in one batch request")
}

func runUpload(cmd *cobra.Command, args []string) error {
	files := make([]models.LocalFile, 0, len(args))
	for _, path := range args {
		file, err := uploads.LoadLocalFile(path)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	application, err := openApp(false)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signalContext()
	defer cancel()

	queue := application.UploadQueue
	queue.SetUseAdvanced(uploadAdvanced || config.Uploads.UseAdvanced)
	queue.Enqueue(files...)

	var summary uploads.Summary
	if uploadBatch {
		summary, err = queue.ProcessBatch(ctx)
	} else {
		summary, err = queue.ProcessAll(ctx)
	}

	out := cmd.OutOrStdout()
	if werr := writeUploadTable(out, queue.Items()); werr != nil {
		return werr
	}
	fmt.Fprintf(out, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := common.DeepCloneConfig(config)
	cfg.Registry.AutoRefresh = true

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	printer := newNotificationPrinter(cmd.OutOrStdout())
	for _, eventType := range interfaces.AllEventTypes {
		if err := application.EventService.Subscribe(eventType, printer.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}

	if err := application.Start(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (%d documents)", cfg.Backend.BaseURL, len(application.Registry.Documents()))
	if application.InboxWatcher != nil {
		fmt.Fprintf(cmd.OutOrStdout(), ", inbox %s", application.InboxWatcher.Dir())
	}
	fmt.Fprintln(cmd.OutOrStdout(), " - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")
	return nil
}

// notificationPrinter writes notifications as single lines. Snapshot updates
// are printed only when the document count changes.
type notificationPrinter struct {
	mu           sync.Mutex
	out          io.Writer
	lastSnapshot string
}

func newNotificationPrinter(out io.Writer) *notificationPrinter {
	return &notificationPrinter{out: out}
}

func (p *notificationPrinter) handle(ctx context.Context, event interfaces.Event) error {
	n, ok := event.Payload.(events.Notification)
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Type == interfaces.EventSnapshotUpdated {
		if n.Message == p.lastSnapshot {
			return nil
		}
		p.lastSnapshot = n.Message
	}

	line := fmt.Sprintf("%s [%s] %s", n.Timestamp.Local().Format("15:04:05"), n.Level, n.Message)
	if n.Error != "" {
		line += ": " + n.Error
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}
