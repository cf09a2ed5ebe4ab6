package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/simoradar/internal/model"
)

// Config is the root configuration for the SIMO acquisition pipeline.
type Config struct {
	Source       SourceConfig
	HTTP         HTTPConfig
	Filters      model.Filters
	ExactLevel   bool // level filter compares whole values instead of substrings
	Searches     []SearchConfig
	Store        StoreConfig
	ExportPath   string // empty disables the JSON export
	Notification NotificationConfig
	Interval     time.Duration // daemon interval for "start"
	LockFile     string
}

// SourceConfig selects the pagination driver and its settings.
type SourceConfig struct {
	Driver      string // "resource" or "interactive"
	MaxPages    int
	PageTimeout time.Duration
	Resource    ResourceConfig
	Interactive InteractiveConfig
}

type ResourceConfig struct {
	URL         string `yaml:"url"`
	PageSize    int    `yaml:"page_size"`
	TotalHeader string `yaml:"total_header"`
	Concurrency int    `yaml:"concurrency"`
}

type InteractiveConfig struct {
	URL          string
	PollAttempts int
	PollInterval time.Duration
}

// HTTPConfig controls retries and request pacing toward the source.
type HTTPConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	RequestsPerSecond float64
	Burst             int
}

// SearchConfig is a named filter set run by the daemon.
type SearchConfig struct {
	Name    string
	Filters model.Filters
}

type StoreConfig struct {
	Driver    string `yaml:"driver"` // "sqlite" or "postgres"
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
}

// NotificationConfig controls which run reporter is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
	OnlyErrors bool   `yaml:"only_errors"`
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Source       rawSourceConfig    `yaml:"source"`
	HTTP         rawHTTPConfig      `yaml:"http"`
	Filters      map[string]string  `yaml:"filters"`
	ExactLevel   *bool              `yaml:"exact_level"`
	Searches     []rawSearchConfig  `yaml:"searches"`
	Store        StoreConfig        `yaml:"store"`
	Export       rawExportConfig    `yaml:"export"`
	Notification NotificationConfig `yaml:"notification"`
	Interval     string             `yaml:"interval"`
	LockFile     string             `yaml:"lock_file"`
}

type rawSourceConfig struct {
	Driver      string               `yaml:"driver"`
	MaxPages    int                  `yaml:"max_pages"`
	PageTimeout string               `yaml:"page_timeout"`
	Resource    ResourceConfig       `yaml:"resource"`
	Interactive rawInteractiveConfig `yaml:"interactive"`
}

type rawInteractiveConfig struct {
	URL          string `yaml:"url"`
	PollAttempts int    `yaml:"poll_attempts"`
	PollInterval string `yaml:"poll_interval"`
}

type rawHTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        *int    `yaml:"max_retries"`
	BaseDelay         string  `yaml:"base_delay"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type rawSearchConfig struct {
	Name    string            `yaml:"name"`
	Filters map[string]string `yaml:"filters"`
}

type rawExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	pageTimeout, err := durationOr(raw.Source.PageTimeout, 60*time.Second, "source.page_timeout")
	if err != nil {
		return nil, err
	}
	pollInterval, err := durationOr(raw.Source.Interactive.PollInterval, 300*time.Millisecond, "source.interactive.poll_interval")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := durationOr(raw.HTTP.Timeout, 90*time.Second, "http.timeout")
	if err != nil {
		return nil, err
	}
	baseDelay, err := durationOr(raw.HTTP.BaseDelay, time.Second, "http.base_delay")
	if err != nil {
		return nil, err
	}
	interval, err := durationOr(raw.Interval, 24*time.Hour, "interval")
	if err != nil {
		return nil, err
	}

	filters, err := model.ParseFilters(raw.Filters)
	if err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}

	searches := make([]SearchConfig, 0, len(raw.Searches))
	for i, s := range raw.Searches {
		f, err := model.ParseFilters(s.Filters)
		if err != nil {
			return nil, fmt.Errorf("parse searches[%d].filters: %w", i, err)
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("search-%d", i+1)
		}
		searches = append(searches, SearchConfig{Name: name, Filters: f})
	}

	maxRetries := 3 // default
	if raw.HTTP.MaxRetries != nil {
		maxRetries = *raw.HTTP.MaxRetries
	}

	driver := strings.ToLower(orDefault(raw.Source.Driver, "resource"))

	// The resource pipeline matches levels exactly unless told otherwise.
	exactLevel := driver == "resource"
	if raw.ExactLevel != nil {
		exactLevel = *raw.ExactLevel
	}

	cfg := &Config{
		Source: SourceConfig{
			Driver:      driver,
			MaxPages:    raw.Source.MaxPages,
			PageTimeout: pageTimeout,
			Resource:    raw.Source.Resource,
			Interactive: InteractiveConfig{
				URL:          raw.Source.Interactive.URL,
				PollAttempts: raw.Source.Interactive.PollAttempts,
				PollInterval: pollInterval,
			},
		},
		HTTP: HTTPConfig{
			Timeout:           httpTimeout,
			MaxRetries:        maxRetries,
			BaseDelay:         baseDelay,
			RequestsPerSecond: raw.HTTP.RequestsPerSecond,
			Burst:             raw.HTTP.Burst,
		},
		Filters:      filters,
		ExactLevel:   exactLevel,
		Searches:     searches,
		Store:        raw.Store,
		ExportPath:   raw.Export.Path,
		Notification: raw.Notification,
		Interval:     interval,
		LockFile:     orDefault(raw.LockFile, "simoradar.lock"),
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Resource.PageSize == 0 {
		cfg.Source.Resource.PageSize = 50
	}
	if cfg.Source.Resource.TotalHeader == "" {
		cfg.Source.Resource.TotalHeader = "Content-Range"
	}
	if cfg.Source.Resource.Concurrency == 0 {
		cfg.Source.Resource.Concurrency = 1
	}
	if cfg.Source.Interactive.PollAttempts == 0 {
		cfg.Source.Interactive.PollAttempts = 30
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = "simoradar.db"
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 100
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
}

func validate(cfg *Config) error {
	switch cfg.Source.Driver {
	case "resource":
		if cfg.Source.Resource.URL == "" {
			return fmt.Errorf("source.resource.url is required when source.driver is \"resource\"")
		}
		if cfg.Source.Resource.PageSize < 0 {
			return fmt.Errorf("source.resource.page_size must be positive, got %d", cfg.Source.Resource.PageSize)
		}
		if cfg.Source.Resource.Concurrency < 1 || cfg.Source.Resource.Concurrency > 8 {
			return fmt.Errorf("source.resource.concurrency must be between 1 and 8, got %d", cfg.Source.Resource.Concurrency)
		}
	case "interactive":
		if cfg.Source.Interactive.URL == "" {
			return fmt.Errorf("source.interactive.url is required when source.driver is \"interactive\"")
		}
	default:
		return fmt.Errorf("source.driver must be \"resource\" or \"interactive\", got %q", cfg.Source.Driver)
	}

	if cfg.Source.MaxPages < 0 {
		return fmt.Errorf("source.max_pages must not be negative, got %d", cfg.Source.MaxPages)
	}
	if cfg.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.Interval < time.Minute {
		return fmt.Errorf("interval must be at least 1m, got %v", cfg.Interval)
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	return nil
}

func durationOr(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
