package textnorm

import "strings"

// Split cuts a normalized line on delim and trims every field. There is no
// quoting or escaping; an empty line yields a single empty field.
func Split(normalized string, delim rune) []string {
	parts := strings.Split(normalized, string(delim))
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// IsBlank reports whether a split row carries no content.
func IsBlank(fields []string) bool {
	for _, field := range fields {
		if field != "" {
			return false
		}
	}
	return true
}
