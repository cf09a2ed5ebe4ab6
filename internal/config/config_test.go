package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/simoradar/internal/filter"
	"github.com/amishk599/simoradar/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("SIMO_TEST_WEBHOOK", "https://hooks.slack.com/services/T/B/X")
	path := writeConfig(t, `
source:
  driver: resource
  max_pages: 10
  page_timeout: 45s
  resource:
    url: https://simo.example.gov.co/empleos
    page_size: 20
    concurrency: 4
http:
  max_retries: 0
  base_delay: 500ms
  requests_per_second: 2
filters:
  department: Valle del Cauca
  salary_min: "2500000"
searches:
  - name: cali
    filters:
      city: Cali
  - filters:
      level: Profesional
store:
  path: /tmp/simo.db
  batch_size: 50
export:
  path: out/simo_{run}.json
notification:
  type: slack
  webhook_url: ${SIMO_TEST_WEBHOOK}
  only_errors: true
interval: 12h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Driver != "resource" || cfg.Source.MaxPages != 10 || cfg.Source.PageTimeout != 45*time.Second {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.Resource.PageSize != 20 || cfg.Source.Resource.Concurrency != 4 || cfg.Source.Resource.TotalHeader != "Content-Range" {
		t.Errorf("Resource = %+v", cfg.Source.Resource)
	}
	if cfg.HTTP.MaxRetries != 0 || cfg.HTTP.BaseDelay != 500*time.Millisecond || cfg.HTTP.RequestsPerSecond != 2 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Filters.Department != "Valle del Cauca" || cfg.Filters.SalaryMin == nil || *cfg.Filters.SalaryMin != 2500000 {
		t.Errorf("Filters = %+v", cfg.Filters)
	}
	if len(cfg.Searches) != 2 || cfg.Searches[0].Name != "cali" || cfg.Searches[0].Filters.City != "Cali" {
		t.Errorf("Searches = %+v", cfg.Searches)
	}
	if cfg.Searches[1].Name != "search-2" || cfg.Searches[1].Filters.Level != "Profesional" {
		t.Errorf("unnamed search = %+v", cfg.Searches[1])
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/tmp/simo.db" || cfg.Store.BatchSize != 50 {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.ExportPath != "out/simo_{run}.json" {
		t.Errorf("ExportPath = %q", cfg.ExportPath)
	}
	if cfg.Notification.WebhookURL != "https://hooks.slack.com/services/T/B/X" || !cfg.Notification.OnlyErrors {
		t.Errorf("Notification = %+v", cfg.Notification)
	}
	if cfg.Interval != 12*time.Hour {
		t.Errorf("Interval = %v, want 12h", cfg.Interval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
source:
  resource:
    url: https://simo.example.gov.co/empleos
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Driver != "resource" || cfg.Source.Resource.PageSize != 50 {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.Interactive.PollAttempts != 30 || cfg.Source.Interactive.PollInterval != 300*time.Millisecond {
		t.Errorf("Interactive = %+v", cfg.Source.Interactive)
	}
	if cfg.HTTP.MaxRetries != 3 || cfg.HTTP.BaseDelay != time.Second {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "simoradar.db" || cfg.Store.BatchSize != 100 {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Notification.Type != "log" || cfg.Interval != 24*time.Hour || cfg.LockFile != "simoradar.lock" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Filters.IsEmpty() || len(cfg.Searches) != 0 {
		t.Errorf("expected no filters, got %+v", cfg.Filters)
	}
}

func TestLoad_ExactLevelFollowsDriver(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want bool
	}{
		{
			name: "resource defaults to exact",
			yaml: "source:\n  resource:\n    url: https://simo.example.gov.co/empleos\n",
			want: true,
		},
		{
			name: "interactive defaults to substring",
			yaml: "source:\n  driver: interactive\n  interactive:\n    url: https://simo.example.gov.co/\n",
			want: false,
		},
		{
			name: "explicit false wins on resource",
			yaml: "source:\n  resource:\n    url: https://simo.example.gov.co/empleos\nexact_level: false\n",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.ExactLevel != tt.want {
				t.Errorf("ExactLevel = %v, want %v", cfg.ExactLevel, tt.want)
			}

			rec := model.JobRecord{Level: "Profesional"}
			f := model.Filters{Level: "Prof", IncludeInactive: true}
			if got := filter.NewPredicate(cfg.ExactLevel).Match(rec, f); got == tt.want {
				t.Errorf("Match(Profesional, level=Prof) = %v with ExactLevel %v", got, cfg.ExactLevel)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "source: [broken")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "resource without url",
			content: "source:\n  driver: resource\n",
			want:    "source.resource.url",
		},
		{
			name:    "interactive without url",
			content: "source:\n  driver: interactive\n",
			want:    "source.interactive.url",
		},
		{
			name:    "unknown driver",
			content: "source:\n  driver: browser\n",
			want:    "source.driver",
		},
		{
			name:    "postgres without dsn",
			content: "source:\n  resource:\n    url: https://x\nstore:\n  driver: postgres\n",
			want:    "store.dsn",
		},
		{
			name:    "slack without webhook",
			content: "source:\n  resource:\n    url: https://x\nnotification:\n  type: slack\n",
			want:    "webhook_url",
		},
		{
			name:    "interval too short",
			content: "source:\n  resource:\n    url: https://x\ninterval: 10s\n",
			want:    "interval",
		},
		{
			name:    "bad duration",
			content: "source:\n  page_timeout: soon\n  resource:\n    url: https://x\n",
			want:    "source.page_timeout",
		},
		{
			name:    "bad salary filter",
			content: "source:\n  resource:\n    url: https://x\nfilters:\n  salary_max: lots\n",
			want:    "salary_max",
		},
		{
			name:    "concurrency out of range",
			content: "source:\n  resource:\n    url: https://x\n    concurrency: 50\n",
			want:    "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
