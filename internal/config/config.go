// Package config provides unified configuration loading for the invoice engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the invoice engine.
type Config struct {
	Parser        ParserConfig        `yaml:"parser"`
	Completion    CompletionConfig    `yaml:"completion"`
	Sheets        SheetsConfig        `yaml:"sheets"`
	Drive         DriveConfig         `yaml:"drive"`
	Tracking      TrackingConfig      `yaml:"tracking"`
	RunLog        RunLogConfig        `yaml:"runlog"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ParserConfig holds document-parsing service settings.
type ParserConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`
}

// CompletionConfig holds chat-completion API settings.
type CompletionConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	RetryBase  time.Duration `yaml:"retry_base"`
	BatchSize  int           `yaml:"batch_size"`
}

// SheetsConfig holds spreadsheet source and target settings.
type SheetsConfig struct {
	BaseURL          string `yaml:"base_url"`
	Token            string `yaml:"token"`
	SourceSheetID    string `yaml:"source_sheet_id"`
	SourceTab        string `yaml:"source_tab"`
	SourceLinkColumn string `yaml:"source_link_column"`
	TargetSheetID    string `yaml:"target_sheet_id"`
	InvoicesTab      string `yaml:"invoices_tab"`
	LinesTab         string `yaml:"lines_tab"`
	// WorkbookPath switches the sheet store to a local xlsx workbook instead
	// of the Sheets API. Used for offline runs.
	WorkbookPath string `yaml:"workbook_path"`
}

// DriveConfig holds file-storage download settings.
type DriveConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// TrackingConfig holds processed-file marker settings.
type TrackingConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RunLogConfig holds run-history settings.
type RunLogConfig struct {
	Path string `yaml:"path"` // empty disables run history
}

// IngestConfig holds pipeline pacing settings.
type IngestConfig struct {
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FetchDelay   time.Duration `yaml:"fetch_delay"`
	TmpDir       string        `yaml:"tmp_dir"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			BaseURL: "https://api.cloud.llamaindex.ai",
		},
		Completion: CompletionConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			Model:      "openai/gpt-oss-20b",
			MaxRetries: 5,
			RetryBase:  1 * time.Second,
			BatchSize:  5,
		},
		Sheets: SheetsConfig{
			BaseURL:          "https://sheets.googleapis.com",
			SourceTab:        "Sheet1",
			SourceLinkColumn: "Invoices",
			InvoicesTab:      "Invoices",
			LinesTab:         "Invoice Line Items",
		},
		Drive: DriveConfig{
			BaseURL: "https://www.googleapis.com/drive/v3",
		},
		Tracking: TrackingConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Ingest: IngestConfig{
			PollAttempts: 60,
			PollInterval: 2 * time.Second,
			FetchDelay:   1500 * time.Millisecond,
			TmpDir:       "/tmp/invoice-engine",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Completion.MaxRetries < 0 {
		return fmt.Errorf("completion max_retries must be >= 0")
	}

	if c.Completion.BatchSize < 1 {
		return fmt.Errorf("completion batch_size must be >= 1")
	}

	if c.Ingest.PollAttempts < 1 {
		return fmt.Errorf("ingest poll_attempts must be >= 1")
	}

	if c.Tracking.Driver != "memory" && c.Tracking.Driver != "redis" {
		return fmt.Errorf("invalid tracking driver: %s", c.Tracking.Driver)
	}

	if c.Sheets.InvoicesTab == "" || c.Sheets.LinesTab == "" {
		return fmt.Errorf("target tab names must be set")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLAMAPARSE_BASE_URL"); v != "" {
		cfg.Parser.BaseURL = v
	}

	if v := os.Getenv("LLAMAPARSE_API_KEY"); v != "" {
		cfg.Parser.APIKey = v
	}

	if v := os.Getenv("LLAMAPARSE_PROJECT_ID"); v != "" {
		cfg.Parser.ProjectID = v
	}

	if v := os.Getenv("COMPLETION_API_KEY"); v != "" {
		cfg.Completion.APIKey = v
	}

	if v := os.Getenv("COMPLETION_MODEL"); v != "" {
		cfg.Completion.Model = v
	}

	if v := os.Getenv("COMPLETION_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Completion.MaxRetries = n
		}
	}

	if v := os.Getenv("COMPLETION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Completion.BatchSize = n
		}
	}

	if v := os.Getenv("SHEETS_TOKEN"); v != "" {
		cfg.Sheets.Token = v
	}

	if v := os.Getenv("SOURCE_SHEET_ID"); v != "" {
		cfg.Sheets.SourceSheetID = v
	}

	if v := os.Getenv("SOURCE_SHEET_TAB"); v != "" {
		cfg.Sheets.SourceTab = v
	}

	if v := os.Getenv("SOURCE_LINK_COLUMN"); v != "" {
		cfg.Sheets.SourceLinkColumn = v
	}

	if v := os.Getenv("TARGET_SHEET_ID"); v != "" {
		cfg.Sheets.TargetSheetID = v
	}

	if v := os.Getenv("TARGET_INVOICES_TAB"); v != "" {
		cfg.Sheets.InvoicesTab = v
	}

	if v := os.Getenv("TARGET_LINE_ITEMS_TAB"); v != "" {
		cfg.Sheets.LinesTab = v
	}

	if v := os.Getenv("DRIVE_TOKEN"); v != "" {
		cfg.Drive.Token = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Tracking.Driver = "redis"
		cfg.Tracking.Redis.Addr = v
	}

	if v := os.Getenv("RUNLOG_PATH"); v != "" {
		cfg.RunLog.Path = v
	}

	if v := os.Getenv("TMP_DIR"); v != "" {
		cfg.Ingest.TmpDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
