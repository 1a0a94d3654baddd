package enrich

import "strings"

const (
	// ExtraColumn labels the column appended to the header row.
	ExtraColumn = "Extra Info"
	// DefaultSeparator joins multiple values for one key.
	DefaultSeparator = ", "
)

// Enricher appends one joined field to every row.
type Enricher struct {
	Index     *Index
	KeyField  int
	Separator string
	Label     string
}

// NewEnricher returns an Enricher keyed on the first field.
func NewEnricher(idx *Index) *Enricher {
	return &Enricher{Index: idx, Separator: DefaultSeparator, Label: ExtraColumn}
}

// Key extracts the lookup key from a primary row. A row without the key
// field yields the empty key.
func (e *Enricher) Key(row []string) string {
	if e.KeyField < 0 || e.KeyField >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[e.KeyField])
}

// Extra returns the value appended to a data row.
func (e *Enricher) Extra(row []string) string {
	sep := e.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return e.Index.Join(e.Key(row), sep)
}

// HeaderLabel is the label appended to the header row.
func (e *Enricher) HeaderLabel() string {
	if e.Label == "" {
		return ExtraColumn
	}
	return e.Label
}

// Rows enriches rows. Row 0 is the header and gets the column label.
// The input is not modified and row order is kept.
func (e *Enricher) Rows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		next := make([]string, len(row), len(row)+1)
		copy(next, row)
		if i == 0 {
			out[i] = append(next, e.HeaderLabel())
			continue
		}
		out[i] = append(next, e.Extra(row))
	}
	return out
}

// Enrich is a left outer join of rows against idx on the first field.
func Enrich(rows [][]string, idx *Index) [][]string {
	return NewEnricher(idx).Rows(rows)
}
