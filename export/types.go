package export

import (
	"context"
	"io"
	"time"

	errorslib "github.com/goliatone/go-errors"
)

// Format is the output format of a rendered sheet.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// Extension returns the file extension used for artifacts of this format.
func (f Format) Extension() string {
	switch f {
	case FormatSQLite:
		return "db"
	case "":
		return "out"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type stored with artifacts.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatNDJSON:
		return "application/x-ndjson"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatSQLite:
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}

// Column is one header cell. Name is a machine key derived from Label.
type Column struct {
	Name  string
	Label string
}

// Schema is the header row of a sheet.
type Schema struct {
	Columns []Column
}

// Row is one record of trimmed fields. Rows may be shorter or longer than
// the schema.
type Row []string

// RowIterator streams rows. Next returns io.EOF once exhausted.
type RowIterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// RowSource opens the header and data rows of one input.
type RowSource interface {
	Open(ctx context.Context) (RowIterator, Schema, error)
}

// RowTransformer wraps an iterator with row-level transformations.
type RowTransformer interface {
	Wrap(ctx context.Context, in RowIterator, schema Schema) (RowIterator, Schema, error)
}

// Renderer writes rows to the destination.
type Renderer interface {
	Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error)
}

// RenderStats capture renderer output.
type RenderStats struct {
	Rows  int64
	Bytes int64
}

// Sink persists a named sheet. Writing a sheet name twice replaces the
// first write.
type Sink interface {
	WriteSheet(ctx context.Context, sheet string, schema Schema, rows RowIterator) (RenderStats, error)
}

// JSONMode configures JSON rendering.
type JSONMode string

const (
	JSONModeArray JSONMode = "array"
	JSONModeLines JSONMode = "ndjson"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	IncludeHeaders bool
	Delimiter      rune
	HeadersSet     bool
}

// JSONOptions configures JSON output.
type JSONOptions struct {
	Mode JSONMode
}

// XLSXOptions configures XLSX output.
type XLSXOptions struct {
	IncludeHeaders bool
	HeadersSet     bool
	SheetName      string
	MaxRows        int
	MaxBytes       int64
	Style          *SheetStyle
}

// SQLiteOptions configures SQLite output.
type SQLiteOptions struct {
	Table string
}

// RenderOptions configures renderer behavior.
type RenderOptions struct {
	CSV    CSVOptions
	JSON   JSONOptions
	XLSX   XLSXOptions
	SQLite SQLiteOptions
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore stores rendered artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// SheetJob describes one (primary, auxiliary) pair written as one sheet.
type SheetJob struct {
	Name         string
	Source       RowSource
	Transformers []RowTransformer
}

// SheetResult is the outcome of one job.
type SheetResult struct {
	RunID     string
	Sheet     string
	Rows      int64
	Bytes     int64
	Duration  time.Duration
	ErrorKind ErrorKind
	Err       error
}

// BatchResult captures every job of a batch in input order.
type BatchResult struct {
	Sheets []SheetResult
	Errors *errorslib.ErrorCollector
}

// Failed counts jobs that did not complete.
func (b BatchResult) Failed() int {
	failed := 0
	for _, sheet := range b.Sheets {
		if sheet.Err != nil {
			failed++
		}
	}
	return failed
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// MetricsEvent describes lifecycle metrics.
type MetricsEvent struct {
	Name      string
	RunID     string
	Sheet     string
	Rows      int64
	Bytes     int64
	Duration  time.Duration
	ErrorKind ErrorKind
	Timestamp time.Time
}

// MetricsHook emits metrics-friendly lifecycle observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}
