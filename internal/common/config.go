package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Process modes for the document registry
const (
	// ProcessModeExtract downloads the artifact and runs it through the OCR extraction endpoint
	ProcessModeExtract = "extract"
	// ProcessModeServer asks the backend to process and polls for the outcome
	ProcessModeServer = "server"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Backend     BackendConfig   `toml:"backend"`
	Registry    RegistryConfig  `toml:"registry"`
	Uploads     UploadsConfig   `toml:"uploads"`
	Storage     StorageConfig   `toml:"storage"`
	Server      ServerConfig    `toml:"server"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Logging     LoggingConfig   `toml:"logging"`
}

// BackendConfig describes how to reach the OCR backend
type BackendConfig struct {
	BaseURL       string  `toml:"base_url" validate:"required,url"`        // Primary API base
	LegacyBaseURL string  `toml:"legacy_base_url" validate:"required,url"` // Base used by the extraction path
	Timeout       string  `toml:"timeout"`                                 // HTTP timeout, e.g. "30s"
	RateLimit     float64 `toml:"rate_limit" validate:"gte=0"`             // Requests per second, 0 disables limiting
	ListLimit     int     `toml:"list_limit" validate:"gt=0"`              // Page size for the document list
	StatsLimit    int     `toml:"stats_limit" validate:"gt=0"`             // Page size for dashboard snapshots
}

// RegistryConfig controls the document registry polling behaviour
type RegistryConfig struct {
	AutoRefresh          bool     `toml:"auto_refresh"`
	RefreshInterval      string   `toml:"refresh_interval"`                                // e.g. "5s"
	ProcessMode          string   `toml:"process_mode" validate:"oneof=extract server"`    // "extract" or "server"
	ProcessRefreshDelays []string `toml:"process_refresh_delays" validate:"dive,required"` // Delayed refreshes after a server-mode process request
}

// UploadsConfig controls the upload queue and inbox watcher
type UploadsConfig struct {
	UseAdvanced bool     `toml:"use_advanced"` // Request the advanced OCR pipeline
	InboxDir    string   `toml:"inbox_dir"`    // Directory watched for new files, empty disables the watcher
	AutoProcess bool     `toml:"auto_process"` // Upload inbox files as soon as they are queued
	Extensions  []string `toml:"extensions"`   // Accepted file extensions
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Enabled        bool   `toml:"enabled"`          // Keep a snapshot cache of the document list
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type ServerConfig struct {
	Port           int      `toml:"port" validate:"gte=0,lte=65535"`
	Host           string   `toml:"host"`
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins for the local API, "*" allows any
}

// WebSocketConfig contains configuration for notification streaming
type WebSocketConfig struct {
	// Whitelist of event types to broadcast via WebSocket. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Minimum interval between broadcasts per event type, e.g. {"snapshot_updated" = "2s"}. Empty disables throttling.
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Backend: BackendConfig{
			BaseURL:       "http://localhost:8001",
			LegacyBaseURL: "http://localhost:8000",
			Timeout:       "30s",
			RateLimit:     10,
			ListLimit:     100,
			StatsLimit:    1000,
		},
		Registry: RegistryConfig{
			AutoRefresh:          true,
			RefreshInterval:      "5s",
			ProcessMode:          ProcessModeExtract,
			ProcessRefreshDelays: []string{"2s", "5s", "10s"},
		},
		Uploads: UploadsConfig{
			Extensions: []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".txt"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data/docintel",
			},
		},
		Server: ServerConfig{
			Port:           8085,
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"*"},
		},
		WebSocket: WebSocketConfig{
			AllowedEvents:     []string{},
			ThrottleIntervals: map[string]string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCINTEL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Backend configuration (REACT_APP_API_URL kept for deployments shared with the web dashboard)
	if baseURL := os.Getenv("DOCINTEL_API_URL"); baseURL != "" {
		config.Backend.BaseURL = baseURL
	} else if baseURL := os.Getenv("REACT_APP_API_URL"); baseURL != "" {
		config.Backend.BaseURL = baseURL
	}
	if legacyURL := os.Getenv("DOCINTEL_LEGACY_API_URL"); legacyURL != "" {
		config.Backend.LegacyBaseURL = legacyURL
	}
	if timeout := os.Getenv("DOCINTEL_API_TIMEOUT"); timeout != "" {
		config.Backend.Timeout = timeout
	}
	if rateLimit := os.Getenv("DOCINTEL_API_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Backend.RateLimit = rl
		}
	}

	// Registry configuration
	if autoRefresh := os.Getenv("DOCINTEL_AUTO_REFRESH"); autoRefresh != "" {
		if ar, err := strconv.ParseBool(autoRefresh); err == nil {
			config.Registry.AutoRefresh = ar
		}
	}
	if interval := os.Getenv("DOCINTEL_REFRESH_INTERVAL"); interval != "" {
		config.Registry.RefreshInterval = interval
	}
	if mode := os.Getenv("DOCINTEL_PROCESS_MODE"); mode != "" {
		config.Registry.ProcessMode = strings.ToLower(mode)
	}

	// Upload configuration
	if advanced := os.Getenv("DOCINTEL_USE_ADVANCED"); advanced != "" {
		if a, err := strconv.ParseBool(advanced); err == nil {
			config.Uploads.UseAdvanced = a
		}
	}
	if inbox := os.Getenv("DOCINTEL_INBOX_DIR"); inbox != "" {
		config.Uploads.InboxDir = inbox
	}

	// Storage configuration
	if badgerPath := os.Getenv("DOCINTEL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Server configuration
	if port := os.Getenv("DOCINTEL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCINTEL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if origins := os.Getenv("DOCINTEL_CORS_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	// Logging configuration
	if level := os.Getenv("DOCINTEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DOCINTEL_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// splitList splits a comma-separated value, dropping blanks
func splitList(value string) []string {
	out := []string{}
	for _, v := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// FlagOverrides carries command-line values that take precedence over every other source.
// Zero values leave the config untouched.
type FlagOverrides struct {
	Port     int
	Host     string
	BaseURL  string
	LogLevel string
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Port > 0 {
		config.Server.Port = flags.Port
	}
	if flags.Host != "" {
		config.Server.Host = flags.Host
	}
	if flags.BaseURL != "" {
		config.Backend.BaseURL = flags.BaseURL
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
}

// Validate checks the final configuration before any component is built
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := parsePositiveDuration("backend.timeout", c.Backend.Timeout); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("registry.refresh_interval", c.Registry.RefreshInterval); err != nil {
		return err
	}
	if _, err := c.Registry.RefreshDelays(); err != nil {
		return err
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// TimeoutDuration returns the HTTP timeout, defaulting to 30s when unset or invalid
func (b BackendConfig) TimeoutDuration() time.Duration {
	d, err := parsePositiveDuration("backend.timeout", b.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Interval returns the auto-refresh interval, defaulting to 5s when unset or invalid
func (r RegistryConfig) Interval() time.Duration {
	d, err := parsePositiveDuration("registry.refresh_interval", r.RefreshInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// RefreshDelays parses the delayed refresh horizons used after a server-mode process request
func (r RegistryConfig) RefreshDelays() ([]time.Duration, error) {
	delays := make([]time.Duration, 0, len(r.ProcessRefreshDelays))
	for i, raw := range r.ProcessRefreshDelays {
		d, err := parsePositiveDuration(fmt.Sprintf("registry.process_refresh_delays[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		delays = append(delays, d)
	}
	return delays, nil
}

// AcceptsExtension reports whether ext (with or without the dot) is an accepted upload type
func (u UploadsConfig) AcceptsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, allowed := range u.Extensions {
		a := strings.ToLower(strings.TrimSpace(allowed))
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}

func parsePositiveDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, raw)
	}
	return d, nil
}

// DeepCloneConfig creates a deep copy of the Config struct
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Registry.ProcessRefreshDelays = append([]string(nil), c.Registry.ProcessRefreshDelays...)
	clone.Uploads.Extensions = append([]string(nil), c.Uploads.Extensions...)
	clone.WebSocket.AllowedEvents = append([]string(nil), c.WebSocket.AllowedEvents...)
	clone.Logging.Output = append([]string(nil), c.Logging.Output...)
	clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	if c.WebSocket.ThrottleIntervals != nil {
		clone.WebSocket.ThrottleIntervals = make(map[string]string, len(c.WebSocket.ThrottleIntervals))
		for k, v := range c.WebSocket.ThrottleIntervals {
			clone.WebSocket.ThrottleIntervals[k] = v
		}
	}

	return &clone
}
