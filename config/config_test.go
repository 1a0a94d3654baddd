package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func reflectValue(ptr any) reflect.Value {
	return reflect.ValueOf(ptr).Elem()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Delimiter != ";" {
		t.Errorf("Delimiter = %q, want %q", cfg.Delimiter, ";")
	}
	if cfg.DelimiterRune() != ';' {
		t.Errorf("DelimiterRune() = %q, want ';'", cfg.DelimiterRune())
	}
	if cfg.HighlightValue != "up" {
		t.Errorf("HighlightValue = %q, want %q", cfg.HighlightValue, "up")
	}
	if cfg.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", cfg.Parallel)
	}
	if cfg.SkipBlank {
		t.Errorf("SkipBlank = true, want false")
	}
	if cfg.WatchDebounce != 500*time.Millisecond {
		t.Errorf("WatchDebounce = %s, want 500ms", cfg.WatchDebounce)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"LOGSHEET_DELIMITER":      "tab",
		"LOGSHEET_SKIP_BLANK":     "true",
		"LOGSHEET_PARALLEL":       "4",
		"LOGSHEET_WATCH_DEBOUNCE": "2s",
		"LOGSHEET_METRICS_FILE":   "/tmp/logsheet.prom",
		"LOG_LEVEL":               "debug",
		"LOGSHEET_LOG_FORMAT":     "json",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.DelimiterRune() != '\t' {
		t.Errorf("DelimiterRune() = %q, want tab", cfg.DelimiterRune())
	}
	if !cfg.SkipBlank {
		t.Errorf("SkipBlank = false, want true")
	}
	if cfg.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", cfg.Parallel)
	}
	if cfg.WatchDebounce != 2*time.Second {
		t.Errorf("WatchDebounce = %s, want 2s", cfg.WatchDebounce)
	}
	if cfg.MetricsFile != "/tmp/logsheet.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (from LOG_LEVEL)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOGSHEET_HIGHLIGHT_VALUE", "ok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HighlightValue != "ok" {
		t.Errorf("HighlightValue = %q, want ok", cfg.HighlightValue)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"bad integer", map[string]string{"LOGSHEET_PARALLEL": "many"}, "LOGSHEET_PARALLEL"},
		{"zero parallel", map[string]string{"LOGSHEET_PARALLEL": "0"}, "LOGSHEET_PARALLEL"},
		{"bad duration", map[string]string{"LOGSHEET_WATCH_DEBOUNCE": "soon"}, "LOGSHEET_WATCH_DEBOUNCE"},
		{"bad bool", map[string]string{"LOGSHEET_SKIP_BLANK": "maybe"}, "LOGSHEET_SKIP_BLANK"},
		{"long delimiter", map[string]string{"LOGSHEET_DELIMITER": ";;"}, "LOGSHEET_DELIMITER"},
		{"quote delimiter", map[string]string{"LOGSHEET_DELIMITER": `"`}, "LOGSHEET_DELIMITER"},
		{"bad level", map[string]string{"LOGSHEET_LOG_LEVEL": "loud"}, "LOGSHEET_LOG_LEVEL"},
		{"bad format", map[string]string{"LOGSHEET_LOG_FORMAT": "xml"}, "LOGSHEET_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envMap(tt.env))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ge *errors.Error
			if !stderrors.As(err, &ge) {
				t.Fatalf("expected go-errors error, got %T", err)
			}
			if _, ok := ge.ValidationMap()[tt.field]; !ok {
				t.Fatalf("expected field %s in %v", tt.field, ge.ValidationMap())
			}
		})
	}
}

func TestLoad_Required(t *testing.T) {
	var cfg struct {
		Token string `env:"LOGSHEET_TEST_TOKEN" required:"true"`
	}
	err := loadStruct(reflectValue(&cfg), envMap(nil))
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetField_StringSlice(t *testing.T) {
	var cfg struct {
		Paths []string `env:"LOGSHEET_TEST_PATHS"`
	}
	if err := loadStruct(reflectValue(&cfg), envMap(map[string]string{"LOGSHEET_TEST_PATHS": " a.txt, ,b.txt "})); err != nil {
		t.Fatalf("loadStruct: %v", err)
	}
	if strings.Join(cfg.Paths, "|") != "a.txt|b.txt" {
		t.Fatalf("unexpected paths %v", cfg.Paths)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "LOGSHEET_DELIMITER=|\nLOGSHEET_DOTENV_PROBE=loaded\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("LOGSHEET_DELIMITER", ",")
	t.Cleanup(func() { _ = os.Unsetenv("LOGSHEET_DOTENV_PROBE") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("LOGSHEET_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("LOGSHEET_DOTENV_PROBE = %q, want loaded", got)
	}
	if got := os.Getenv("LOGSHEET_DELIMITER"); got != "," {
		t.Errorf("LOGSHEET_DELIMITER = %q, want the existing value", got)
	}
}

func TestConfig_String(t *testing.T) {
	cfg, err := load(envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := cfg.String()
	for _, want := range []string{`Delimiter: ";"`, "Parallel: 1", `Level: "info"`} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %s, missing %s", s, want)
		}
	}
}
