// Package enrich joins primary rows to values collected from an auxiliary
// log.
package enrich

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

const (
	// DefaultKeyField is the auxiliary field a value is filed under.
	DefaultKeyField = 2
	// DefaultValueField is the auxiliary field that is collected.
	DefaultValueField = 0

	maxLineBytes = 1024 * 1024
)

// SkipFunc observes auxiliary lines dropped for having too few fields.
// lineNo is 1-based.
type SkipFunc func(lineNo int, line string, fields []string)

// Option configures Build and BuildFromReader.
type Option func(*options)

type options struct {
	normalizer *textnorm.Normalizer
	keyField   int
	valueField int
	onSkip     SkipFunc
}

// WithNormalizer sets the normalizer used for auxiliary lines.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(o *options) {
		if n != nil {
			o.normalizer = n
		}
	}
}

// WithKeyField picks the field used as the key.
func WithKeyField(i int) Option {
	return func(o *options) {
		if i >= 0 {
			o.keyField = i
		}
	}
}

// WithValueField picks the field collected under the key.
func WithValueField(i int) Option {
	return func(o *options) {
		if i >= 0 {
			o.valueField = i
		}
	}
}

// WithSkipHook registers fn to observe malformed lines.
func WithSkipHook(fn SkipFunc) Option {
	return func(o *options) {
		o.onSkip = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{
		normalizer: textnorm.Default(),
		keyField:   DefaultKeyField,
		valueField: DefaultValueField,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) minFields() int {
	return max(o.keyField, o.valueField) + 1
}

// Index maps a key to the values seen under it, in file order. It is
// read-only once built.
type Index struct {
	keys    []string
	values  map[string][]string
	entries int
	skipped int
}

// Build indexes lines. Lines with too few fields are skipped and reported
// to the skip hook; they never produce an error.
func Build(lines []string, opts ...Option) *Index {
	o := buildOptions(opts)
	b := newBuilder(o)
	for i, line := range lines {
		b.add(i+1, line)
	}
	return b.idx
}

// BuildFromReader streams lines from r. Only read failures and
// cancellation are returned.
func BuildFromReader(ctx context.Context, r io.Reader, opts ...Option) (*Index, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return nil, errors.New("auxiliary reader is required", errors.CategoryValidation).
			WithTextCode("AUX_READER_REQUIRED")
	}
	o := buildOptions(opts)
	b := newBuilder(o)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		b.add(lineNo, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read auxiliary lines").
			WithTextCode("AUX_READ_FAILED")
	}
	return b.idx, nil
}

type builder struct {
	opts options
	idx  *Index
}

func newBuilder(o options) *builder {
	return &builder{opts: o, idx: &Index{values: make(map[string][]string)}}
}

func (b *builder) add(lineNo int, line string) {
	fields := b.opts.normalizer.Fields(line)
	if len(fields) < b.opts.minFields() {
		b.idx.skipped++
		if b.opts.onSkip != nil {
			b.opts.onSkip(lineNo, line, fields)
		}
		return
	}
	key := fields[b.opts.keyField]
	if _, seen := b.idx.values[key]; !seen {
		b.idx.keys = append(b.idx.keys, key)
	}
	b.idx.values[key] = append(b.idx.values[key], fields[b.opts.valueField])
	b.idx.entries++
}

// Lookup returns a copy of the values filed under key, or nil.
func (idx *Index) Lookup(key string) []string {
	if idx == nil {
		return nil
	}
	values, ok := idx.values[strings.TrimSpace(key)]
	if !ok {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Join returns the values under key joined by sep.
func (idx *Index) Join(key, sep string) string {
	if idx == nil {
		return ""
	}
	return strings.Join(idx.values[strings.TrimSpace(key)], sep)
}

// Keys lists keys in first-seen order.
func (idx *Index) Keys() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Len is the number of distinct keys.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.keys)
}

// Entries is the number of indexed values across all keys.
func (idx *Index) Entries() int {
	if idx == nil {
		return 0
	}
	return idx.entries
}

// Skipped is the number of lines dropped while building.
func (idx *Index) Skipped() int {
	if idx == nil {
		return 0
	}
	return idx.skipped
}
