package exportsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/salmanaghayev/text-csv-or-excel/export"
	_ "modernc.org/sqlite"
)

const defaultTableName = "data"

// Renderer writes rows into one TEXT-typed table of a SQLite database.
type Renderer struct {
	// TableName is used when the render options name no table.
	TableName string
}

// Register adds the renderer to registry under export.FormatSQLite.
func Register(registry *export.RendererRegistry) error {
	return registry.Register(export.FormatSQLite, Renderer{})
}

// Render buffers rows into a temp SQLite database and streams it to w.
func (r Renderer) Render(ctx context.Context, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if rows == nil {
		return export.RenderStats{}, export.NewError(export.KindValidation, "rows are required", nil)
	}

	tableName := strings.TrimSpace(opts.SQLite.Table)
	if tableName == "" {
		tableName = strings.TrimSpace(r.TableName)
	}
	table := newTableSpec(sanitizeIdentifier(tableName, defaultTableName), schema)

	tempFile, err := os.CreateTemp("", "logsheet-*.sqlite")
	if err != nil {
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite temp file create failed", err)
	}
	path := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(path)
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite temp file close failed", err)
	}
	defer func() {
		_ = os.Remove(path)
	}()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite open failed", err)
	}

	stats, err := writeSQLiteRows(ctx, db, table, rows)
	if err != nil {
		_ = db.Close()
		return stats, err
	}
	if err := db.Close(); err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite close failed", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite temp file open failed", err)
	}
	defer func() {
		_ = file.Close()
	}()

	cw := &countingWriter{w: w}
	if _, err := io.Copy(cw, file); err != nil {
		return export.RenderStats{Rows: stats.Rows, Bytes: cw.count}, err
	}
	stats.Bytes = cw.count
	return stats, nil
}

// tableSpec tracks the columns of the table being written. Rows wider
// than the header add columns named after their position.
type tableSpec struct {
	name    string
	columns []string
	seen    map[string]struct{}
}

func newTableSpec(name string, schema export.Schema) *tableSpec {
	t := &tableSpec{name: name, seen: make(map[string]struct{})}
	for i, col := range schema.Columns {
		label := col.Name
		if label == "" {
			label = fmt.Sprintf("column_%d", i+1)
		}
		t.add(label)
	}
	if len(t.columns) == 0 {
		// SQLite tables need at least one column.
		t.add("column_1")
	}
	return t
}

func (t *tableSpec) add(name string) string {
	candidate := name
	for n := 2; ; n++ {
		if _, dup := t.seen[strings.ToLower(candidate)]; !dup {
			break
		}
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	t.seen[strings.ToLower(candidate)] = struct{}{}
	t.columns = append(t.columns, candidate)
	return candidate
}

func (t *tableSpec) createSQL() string {
	defs := make([]string, len(t.columns))
	for i, col := range t.columns {
		defs[i] = quoteIdentifier(col) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdentifier(t.name), strings.Join(defs, ", "))
}

func (t *tableSpec) insertSQL() string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = quoteIdentifier(col)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(t.name), strings.Join(names, ", "), strings.Join(placeholders(len(names)), ", "))
}

func writeSQLiteRows(ctx context.Context, db *sql.DB, table *tableSpec, rows export.RowIterator) (export.RenderStats, error) {
	stats := export.RenderStats{}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite begin transaction failed", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, table.createSQL()); err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite create table failed", err)
	}

	stmt, err := tx.PrepareContext(ctx, table.insertSQL())
	if err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite prepare insert failed", err)
	}
	defer func() {
		if stmt != nil {
			_ = stmt.Close()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return stats, err
		}

		if len(row) > len(table.columns) {
			_ = stmt.Close()
			if err := widen(ctx, tx, table, len(row)); err != nil {
				return stats, err
			}
			if stmt, err = tx.PrepareContext(ctx, table.insertSQL()); err != nil {
				return stats, export.NewError(export.KindInternal, "sqlite prepare insert failed", err)
			}
		}

		values := make([]any, len(table.columns))
		for i, value := range row {
			values[i] = value
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return stats, export.NewError(export.KindInternal, "sqlite insert failed", err)
		}
		stats.Rows++
	}

	if err := tx.Commit(); err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite commit failed", err)
	}
	return stats, nil
}

func widen(ctx context.Context, tx *sql.Tx, table *tableSpec, width int) error {
	for len(table.columns) < width {
		col := table.add(fmt.Sprintf("column_%d", len(table.columns)+1))
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdentifier(table.name), quoteIdentifier(col))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return export.NewError(export.KindInternal, "sqlite add column failed", err)
		}
	}
	return nil
}

func placeholders(count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = "?"
	}
	return out
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sanitizeIdentifier(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		sanitized = fallback
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "t_" + sanitized
	}
	return sanitized
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
