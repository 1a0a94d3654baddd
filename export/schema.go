package export

import (
	"fmt"
	"strings"
	"unicode"
)

// NewSchema builds a schema from header labels. Names are lower snake case
// and unique; an empty label is named after its position.
func NewSchema(labels []string) Schema {
	columns := make([]Column, 0, len(labels))
	seen := make(map[string]int, len(labels))
	for i, label := range labels {
		name := columnKey(label)
		if name == "" {
			name = positionalName(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		columns = append(columns, Column{Name: name, Label: label})
	}
	return Schema{Columns: columns}
}

// AppendColumn returns a copy of s with label appended.
func (s Schema) AppendColumn(label string) Schema {
	labels := s.Labels()
	return NewSchema(append(labels, label))
}

// Labels returns the header text of every column.
func (s Schema) Labels() []string {
	labels := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		labels[i] = col.Label
	}
	return labels
}

// Width is the number of header columns.
func (s Schema) Width() int {
	return len(s.Columns)
}

func (s Schema) nameAt(i int) string {
	if i < len(s.Columns) && s.Columns[i].Name != "" {
		return s.Columns[i].Name
	}
	return positionalName(i)
}

// headerRow pads the header labels to width.
func (s Schema) headerRow(width int) []string {
	width = max(width, len(s.Columns))
	out := make([]string, width)
	for i := range out {
		if i < len(s.Columns) {
			out[i] = s.Columns[i].Label
			if out[i] == "" {
				out[i] = s.Columns[i].Name
			}
			continue
		}
		out[i] = positionalName(i)
	}
	return out
}

func positionalName(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}

func columnKey(label string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
