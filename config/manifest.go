package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

// Manifest describes a batch: the sheets to write and how to normalize
// their lines.
//
//	workbook: out/status.xlsx
//	delimiter: ";"
//	rules:
//	  - kind: literal
//	    pattern: "|"
//	    replacement: ";"
//	sheets:
//	  - name: Routers
//	    input: routers.txt
//	    auxiliary: routers-extra.txt
type Manifest struct {
	Workbook  string              `yaml:"workbook"`
	Delimiter string              `yaml:"delimiter"`
	SkipBlank *bool               `yaml:"skip_blank"`
	Rules     []textnorm.RuleSpec `yaml:"rules"`
	Sheets    []SheetSpec         `yaml:"sheets"`

	// Path is the file the manifest was loaded from, if any.
	Path string `yaml:"-"`
}

// SheetSpec pairs a primary file with an optional auxiliary file.
type SheetSpec struct {
	Name      string `yaml:"name"`
	Input     string `yaml:"input"`
	Auxiliary string `yaml:"auxiliary"`
}

// LoadManifest reads and validates the manifest at path. Relative paths
// inside it resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CategoryNotFound, fmt.Sprintf("manifest %s not found", path)).
				WithTextCode("MANIFEST_NOT_FOUND")
		}
		return nil, errors.Wrap(err, errors.CategoryExternal, fmt.Sprintf("open manifest %s", path)).
			WithTextCode("MANIFEST_OPEN_FAILED")
	}
	defer file.Close()

	m, err := ParseManifest(file, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// ParseManifest decodes a manifest from r, resolving relative paths
// against baseDir.
func ParseManifest(r io.Reader, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "decode manifest").
			WithTextCode("MANIFEST_DECODE_FAILED")
	}

	m.Workbook = resolve(baseDir, m.Workbook)
	for i := range m.Sheets {
		m.Sheets[i].Input = resolve(baseDir, m.Sheets[i].Input)
		m.Sheets[i].Auxiliary = resolve(baseDir, m.Sheets[i].Auxiliary)
	}
	if err := m.normalizeNames(); err != nil {
		return nil, err
	}
	return &m, nil
}

// normalizeNames fills missing sheet names from input file names and
// rejects names that collide once sanitized.
func (m *Manifest) normalizeNames() error {
	var fields []errors.FieldError
	if len(m.Sheets) == 0 {
		fields = append(fields, errors.FieldError{Field: "sheets", Message: "at least one sheet is required"})
	}
	seen := make(map[string]int, len(m.Sheets))
	for i := range m.Sheets {
		sheet := &m.Sheets[i]
		field := fmt.Sprintf("sheets[%d]", i)
		if strings.TrimSpace(sheet.Input) == "" {
			fields = append(fields, errors.FieldError{Field: field + ".input", Message: "is required"})
			continue
		}
		name := sheet.Name
		if strings.TrimSpace(name) == "" {
			derived, err := export.SheetNameFromPath(sheet.Input)
			if err != nil {
				fields = append(fields, errors.FieldError{Field: field + ".name", Message: "cannot be derived from input", Value: sheet.Input})
				continue
			}
			name = derived
		}
		clean, err := export.SanitizeSheetName(name)
		if err != nil {
			fields = append(fields, errors.FieldError{Field: field + ".name", Message: "is not a usable sheet name", Value: name})
			continue
		}
		key := strings.ToLower(clean)
		if prev, ok := seen[key]; ok {
			fields = append(fields, errors.FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicates sheets[%d]", prev), Value: clean})
			continue
		}
		seen[key] = i
		sheet.Name = clean
	}
	if len(fields) > 0 {
		return errors.NewValidation("invalid manifest", fields...).
			WithTextCode("MANIFEST_INVALID")
	}
	return nil
}

// Normalizer builds the line normalizer. A delimiter in the manifest wins
// over fallback.
func (m *Manifest) Normalizer(fallback rune) (*textnorm.Normalizer, error) {
	return textnorm.RuleFile{Delimiter: m.Delimiter, Rules: m.Rules}.Build(fallback)
}

// SkipBlankOr returns the manifest's skip_blank setting, or fallback when
// it is not set.
func (m *Manifest) SkipBlankOr(fallback bool) bool {
	if m.SkipBlank == nil {
		return fallback
	}
	return *m.SkipBlank
}

// Inputs lists every file the batch reads, primary and auxiliary.
func (m *Manifest) Inputs() []string {
	out := make([]string, 0, len(m.Sheets)*2)
	for _, sheet := range m.Sheets {
		out = append(out, sheet.Input)
		if sheet.Auxiliary != "" {
			out = append(out, sheet.Auxiliary)
		}
	}
	return out
}

func resolve(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
