package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/app"
	"github.com/ternarybob/docintel/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	logLevel    string
	baseURL     string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "docintel",
	Short:         "Document Intelligence OCR client",
	Long:          `Lists documents held by the OCR backend, drives processing, shows extraction results and exports them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// version needs neither config nor logger
		if cmd == versionCmd {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "OCR backend base URL (overrides config)")

	rootCmd.AddCommand(
		listCmd,
		processCmd,
		viewCmd,
		downloadCmd,
		deleteCmd,
		uploadCmd,
		watchCmd,
		statsCmd,
		healthCmd,
		exportURLCmd,
		serveCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration in order: defaults -> files -> env -> flags,
// then initializes the logger.
func loadConfig() error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("docintel.toml"); err == nil {
			configFiles = append(configFiles, "docintel.toml")
		} else if _, err := os.Stat("deployments/local/docintel.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/docintel.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, common.FlagOverrides{
		Port:     servePort,
		Host:     serveHost,
		BaseURL:  baseURL,
		LogLevel: logLevel,
	})

	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("base_url", config.Backend.BaseURL).
		Str("process_mode", config.Registry.ProcessMode).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")

	return nil
}

// openApp builds the application for a one-shot command. Auto-refresh and the
// inbox watcher stay off; withCache keeps the snapshot cache for offline listing.
func openApp(withCache bool) (*app.App, error) {
	cfg := common.DeepCloneConfig(config)
	cfg.Registry.AutoRefresh = false
	cfg.Uploads.InboxDir = ""
	if !withCache {
		cfg.Storage.Badger.Enabled = false
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
