package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("visible", "sheet", "Status")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "visible" || entry["sheet"] != "Status" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestExportLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewExportLogger(New(&buf, "debug", "text"))

	l.Debugf("sheet.run.start sheet=%q", "A")
	l.Infof("sheet.write.ok rows=%d", 3)
	l.Errorf("sheet.failed err=%v", "disk full")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG",
		`sheet.run.start sheet=\"A\"`,
		"level=INFO",
		"sheet.write.ok rows=3",
		"level=ERROR",
		"component=export",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestExportLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewExportLogger(New(&buf, "error", "text"))
	l.Infof("quiet")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below error level, got %q", buf.String())
	}
}

func TestSkipLogger(t *testing.T) {
	var buf bytes.Buffer
	skip := SkipLogger(New(&buf, "debug", "text"), "aux.txt")
	skip(7, "junk", []string{"junk"})
	out := buf.String()
	if !strings.Contains(out, "auxiliary line skipped") || !strings.Contains(out, "line=7") || !strings.Contains(out, "file=aux.txt") {
		t.Fatalf("unexpected output %q", out)
	}
}
