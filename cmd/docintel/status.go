package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docintel/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the OCR backend is online",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var exportURLCmd = &cobra.Command{
	Use:   "export-url",
	Short: "Print the backend's Excel export URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(false)
		if err != nil {
			return err
		}
		defer application.Close()

		fmt.Fprintln(cmd.OutOrStdout(), application.Client.ExcelExportURL())
		return nil
	},
}

var statsOutput string

func init() {
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", outputTable, "Output format: table, json or yaml")
}

func runStats(cmd *cobra.Command, args []string) error {
	application, err := openApp(false)
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Aggregator.Overview(application.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsOutput != outputTable {
		return writeStructured(out, statsOutput, stats)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total documents\t%d\n", stats.TotalDocuments)
	fmt.Fprintf(tw, "Processed today\t%d\n", stats.ProcessedToday)
	fmt.Fprintf(tw, "Average confidence\t%.1f%%\n", stats.AverageConfidence)
	fmt.Fprintf(tw, "OCR service\t%s\n", onlineLabel(stats.OCROnline))

	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(tw, "  %s\t%d\n", status, stats.ByStatus[models.DocumentStatus(status)])
	}
	return tw.Flush()
}

func runHealth(cmd *cobra.Command, args []string) error {
	application, err := openApp(false)
	if err != nil {
		return err
	}
	defer application.Close()

	online, err := application.Aggregator.OCRStatus(application.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "OCR service at %s is %s\n", application.Client.BaseURL(), onlineLabel(&online))
	if err != nil {
		return err
	}
	if !online {
		return fmt.Errorf("ocr service reported unhealthy")
	}
	return nil
}

func onlineLabel(online *bool) string {
	switch {
	case online == nil:
		return "unknown"
	case *online:
		return "online"
	default:
		return "offline"
	}
}
