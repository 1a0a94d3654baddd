package export

import (
	"context"
	"encoding/csv"
	"io"
)

// CSVRenderer renders CSV output. Ragged rows are written as they are.
type CSVRenderer struct{}

// Render streams rows as CSV.
func (r CSVRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	cw := &countingWriter{w: w}
	writer := csv.NewWriter(cw)
	if opts.CSV.Delimiter != 0 {
		writer.Comma = opts.CSV.Delimiter
	}

	if includeHeaders(opts.CSV.HeadersSet, opts.CSV.IncludeHeaders) && schema.Width() > 0 {
		if err := writer.Write(schema.headerRow(0)); err != nil {
			return RenderStats{}, err
		}
	}

	stats := RenderStats{}
	for {
		row, ok, err := nextRow(ctx, rows)
		if err != nil {
			return stats, err
		}
		if !ok {
			break
		}
		if err := writer.Write(row); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, err
	}

	stats.Bytes = cw.count
	return stats, nil
}
