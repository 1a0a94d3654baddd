package export

import (
	"context"
	"encoding/json"
	"io"
)

// JSONRenderer renders JSON output. Each row becomes an object keyed by
// column name; fields beyond the header are keyed column_N.
type JSONRenderer struct{}

// Render streams rows as JSON array or NDJSON.
func (r JSONRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	cw := &countingWriter{w: w}
	stats := RenderStats{}

	mode := opts.JSON.Mode
	if mode == "" {
		mode = JSONModeArray
	}

	if mode == JSONModeLines {
		encoder := json.NewEncoder(cw)
		for {
			row, ok, err := nextRow(ctx, rows)
			if err != nil {
				return stats, err
			}
			if !ok {
				break
			}
			if err := encoder.Encode(rowObject(schema, row)); err != nil {
				return stats, err
			}
			stats.Rows++
		}

		stats.Bytes = cw.count
		return stats, nil
	}

	if _, err := cw.Write([]byte("[")); err != nil {
		return stats, err
	}

	first := true
	for {
		row, ok, err := nextRow(ctx, rows)
		if err != nil {
			return stats, err
		}
		if !ok {
			break
		}
		payload, err := json.Marshal(rowObject(schema, row))
		if err != nil {
			return stats, err
		}
		if !first {
			if _, err := cw.Write([]byte(",")); err != nil {
				return stats, err
			}
		}
		first = false
		if _, err := cw.Write(payload); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	if _, err := cw.Write([]byte("]")); err != nil {
		return stats, err
	}

	stats.Bytes = cw.count
	return stats, nil
}

func rowObject(schema Schema, row Row) map[string]string {
	obj := make(map[string]string, max(len(row), schema.Width()))
	for i := range schema.Columns {
		obj[schema.nameAt(i)] = ""
	}
	for i, value := range row {
		obj[schema.nameAt(i)] = value
	}
	return obj
}
