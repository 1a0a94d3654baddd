package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"
)

const (
	maxSheetNameLen = 31
	invalidSheetRun = `[]:*?/\`
	// DefaultArtifactTemplate names artifacts after their sheet.
	DefaultArtifactTemplate = "{{.Sheet}}"
)

// SanitizeSheetName makes name acceptable to spreadsheet applications:
// forbidden characters become underscores, surrounding apostrophes are
// dropped and the result is cut to 31 characters.
func SanitizeSheetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetRun, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	if name == "" {
		return "", NewError(KindValidation, "sheet name is required", nil)
	}
	return name, nil
}

// SheetNameFromPath derives a sheet name from a file name without its
// extension.
func SheetNameFromPath(path string) (string, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	return SanitizeSheetName(base)
}

type filenameData struct {
	Sheet     string
	Format    string
	Timestamp string
	Date      string
}

// renderFilename expands tmpl for a sheet and appends the format
// extension when missing.
func renderFilename(tmpl, sheet string, format Format, now time.Time) (string, error) {
	if tmpl == "" {
		tmpl = DefaultArtifactTemplate
	}

	data := filenameData{
		Sheet:     fileSafe(sheet),
		Format:    string(format),
		Timestamp: now.UTC().Format("20060102T150405Z"),
		Date:      now.UTC().Format("20060102"),
	}

	parsed, err := template.New("filename").Parse(tmpl)
	if err != nil {
		return "", NewError(KindValidation, "invalid artifact name template", err)
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "render artifact name", err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", NewError(KindValidation, fmt.Sprintf("empty artifact name for sheet %q", sheet), nil)
	}

	ext := format.Extension()
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return '_'
		case r == ' ':
			return '_'
		}
		return r
	}, name)
}
