package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := parse(t)

	if cfg.DB != "memora.db" || cfg.Addr != "localhost:8080" || cfg.LogLevel != "info" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	settings := cfg.Settings()
	if settings.NewCardsPerDay != 20 || settings.ReviewLimit != 0 {
		t.Errorf("Expected 20 new cards and no review limit, but got %+v", settings)
	}
	if cfg.ExtraNewCards != 10 {
		t.Errorf("Expected 10 extra new cards, but got %d", cfg.ExtraNewCards)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memora.yaml")
	yaml := "db: from-file.db\nnew-cards-per-day: 5\nreview-limit: 50\nlog-level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MEMORA_NEW_CARDS_PER_DAY", "7")
	t.Setenv("MEMORA_REPOS_DIR", "/var/lib/memora/repos")

	cfg := parse(t, "--config", path, "--review-limit", "30")

	testCases := []struct {
		name     string
		got      any
		expected any
	}{
		{"file beats default", cfg.DB, "from-file.db"},
		{"file level", cfg.LogLevel, "debug"},
		{"env beats file", cfg.NewCardsPerDay, 7},
		{"env beats default", cfg.ReposDir, "/var/lib/memora/repos"},
		{"flag beats file", cfg.ReviewLimit, 30},
		{"untouched default", cfg.Addr, "localhost:8080"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.expected {
				t.Errorf("Expected %v, but got %v", tc.expected, tc.got)
			}
		})
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"negative quota", []string{"--new-cards-per-day", "-1"}},
		{"negative review limit", []string{"--review-limit", "-3"}},
		{"unknown log level", []string{"--log-level", "loud"}},
		{"bad address", []string{"--addr", "nowhere"}},
		{"empty database", []string{"--db", ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := Flags()
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}
			if _, err := Load(fs); err == nil {
				t.Error("Expected a validation error, but got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	fs := Flags()
	if err := fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "card", "c1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered at warn level, but got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "card=c1") {
		t.Errorf("Expected the warning with its attributes, but got %q", out)
	}
}
