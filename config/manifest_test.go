package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-errors"
)

const sampleManifest = `
workbook: out/status.xlsx
delimiter: ","
skip_blank: true
rules:
  - kind: literal
    name: pipes
    pattern: "|"
    replacement: ","
sheets:
  - name: Routers
    input: routers.txt
    auxiliary: /srv/extra.txt
  - input: logs/switch-status.txt
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest), "/data")
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	if m.Workbook != filepath.Join("/data", "out", "status.xlsx") {
		t.Errorf("Workbook = %q", m.Workbook)
	}
	if len(m.Sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(m.Sheets))
	}
	if m.Sheets[0].Name != "Routers" || m.Sheets[0].Input != filepath.Join("/data", "routers.txt") {
		t.Errorf("sheet 0 = %+v", m.Sheets[0])
	}
	if m.Sheets[0].Auxiliary != "/srv/extra.txt" {
		t.Errorf("absolute auxiliary path changed: %q", m.Sheets[0].Auxiliary)
	}
	if m.Sheets[1].Name != "switch-status" {
		t.Errorf("derived name = %q, want switch-status", m.Sheets[1].Name)
	}
	if m.Sheets[1].Auxiliary != "" {
		t.Errorf("expected no auxiliary, got %q", m.Sheets[1].Auxiliary)
	}
	if !m.SkipBlankOr(false) {
		t.Errorf("SkipBlankOr(false) = false, want manifest value true")
	}

	want := []string{filepath.Join("/data", "routers.txt"), "/srv/extra.txt", filepath.Join("/data", "logs", "switch-status.txt")}
	if got := m.Inputs(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Inputs() = %v, want %v", got, want)
	}

	n, err := m.Normalizer(';')
	if err != nil {
		t.Fatalf("Normalizer: %v", err)
	}
	if n.Delimiter() != ',' {
		t.Errorf("Delimiter() = %q, want ','", n.Delimiter())
	}
	if got := n.Normalize("a|b"); got != "a,b" {
		t.Errorf("Normalize = %q, want a,b", got)
	}
}

func TestParseManifest_DefaultRules(t *testing.T) {
	m, err := ParseManifest(strings.NewReader("sheets:\n  - input: a.txt\n"), "")
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if !m.SkipBlankOr(true) {
		t.Errorf("SkipBlankOr should fall back when unset")
	}
	n, err := m.Normalizer(';')
	if err != nil {
		t.Fatalf("Normalizer: %v", err)
	}
	if got := n.Fields("host1:  up |  down"); strings.Join(got, "|") != "host1=|up ||down" {
		t.Errorf("Fields = %q", got)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"no sheets", "workbook: a.xlsx\n", "sheets"},
		{"missing input", "sheets:\n  - name: A\n", "sheets[0].input"},
		{"duplicate names", "sheets:\n  - name: Status\n    input: a.txt\n  - name: status\n    input: b.txt\n", "sheets[1].name"},
		{"duplicate derived", "sheets:\n  - input: x/a.txt\n  - input: y/a.log\n", "sheets[1].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(tt.input), "")
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("expected %s in %v", tt.field, err)
			}
		})
	}
}

func TestParseManifest_UnknownField(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("sheets: []\noutput: x\n"), "")
	if !errors.IsCategory(err, errors.CategoryBadInput) {
		t.Fatalf("expected bad input error, got %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte("sheets:\n  - input: status.txt\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Path != path {
		t.Errorf("Path = %q", m.Path)
	}
	if m.Sheets[0].Input != filepath.Join(dir, "status.txt") {
		t.Errorf("Input = %q", m.Sheets[0].Input)
	}

	if _, err := LoadManifest(filepath.Join(dir, "missing.yaml")); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
