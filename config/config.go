// Package config loads logsheet settings from the environment, an optional
// .env file and YAML batch manifests.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

// Config holds the process-wide defaults. Command flags override them.
type Config struct {
	// Delimiter separates fields after normalization. "tab" or "\t" for a
	// tab.
	Delimiter string `env:"LOGSHEET_DELIMITER" default:";"`

	// SkipBlank drops primary lines that split into a single empty field.
	SkipBlank bool `env:"LOGSHEET_SKIP_BLANK" default:"false"`

	// HighlightValue is the status value that colors a row as healthy.
	HighlightValue string `env:"LOGSHEET_HIGHLIGHT_VALUE" default:"up"`

	// Parallel bounds how many sheets of a batch run at once.
	Parallel int `env:"LOGSHEET_PARALLEL" default:"1"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `env:"LOGSHEET_METRICS_FILE"`

	WatchDebounce time.Duration `env:"LOGSHEET_WATCH_DEBOUNCE" default:"500ms"`

	Logging LoggingConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `env:"LOGSHEET_LOG_LEVEL" envAlt:"LOG_LEVEL" default:"info"`

	// Format: text or json.
	Format string `env:"LOGSHEET_LOG_FORMAT" envAlt:"LOG_FORMAT" default:"text"`
}

// Validate checks that the configuration is usable. Every problem is
// reported as a field error on one validation error.
func (c *Config) Validate() error {
	var fields []errors.FieldError

	if _, err := textnorm.ParseDelimiter(c.Delimiter); err != nil {
		fields = append(fields, errors.FieldError{Field: "LOGSHEET_DELIMITER", Message: "must be a single character other than a double quote", Value: c.Delimiter})
	}
	if c.Parallel <= 0 {
		fields = append(fields, errors.FieldError{Field: "LOGSHEET_PARALLEL", Message: "must be positive", Value: c.Parallel})
	}
	if c.WatchDebounce < 0 {
		fields = append(fields, errors.FieldError{Field: "LOGSHEET_WATCH_DEBOUNCE", Message: "must be non-negative", Value: c.WatchDebounce.String()})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		fields = append(fields, errors.FieldError{Field: "LOGSHEET_LOG_LEVEL", Message: "must be one of: debug, info, warn, error", Value: c.Logging.Level})
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		fields = append(fields, errors.FieldError{Field: "LOGSHEET_LOG_FORMAT", Message: "must be one of: text, json", Value: c.Logging.Format})
	}

	if len(fields) > 0 {
		return errors.NewValidation("invalid configuration", fields...).
			WithTextCode("CONFIG_INVALID")
	}
	return nil
}

// DelimiterRune returns the parsed delimiter. Call Validate first.
func (c *Config) DelimiterRune() rune {
	r, err := textnorm.ParseDelimiter(c.Delimiter)
	if err != nil {
		return textnorm.DefaultDelimiter
	}
	return r
}

// String returns a one-line summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Delimiter: %q, SkipBlank: %v, HighlightValue: %q, Parallel: %d, MetricsFile: %q, WatchDebounce: %s, Logging: {Level: %q, Format: %q}}",
		c.Delimiter, c.SkipBlank, c.HighlightValue, c.Parallel, c.MetricsFile, c.WatchDebounce, c.Logging.Level, c.Logging.Format)
}
