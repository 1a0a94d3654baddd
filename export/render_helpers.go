package export

import (
	"context"
	"io"
)

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

type limitedWriter struct {
	w     io.Writer
	count int64
	limit int64
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.limit > 0 && lw.count+int64(len(p)) > lw.limit {
		return 0, NewError(KindValidation, "max bytes exceeded", nil)
	}
	n, err := lw.w.Write(p)
	lw.count += int64(n)
	return n, err
}

func includeHeaders(set, include bool) bool {
	if !set {
		return true
	}
	return include
}

// nextRow reads one row, mapping end of stream to ok=false.
func nextRow(ctx context.Context, rows RowIterator) (Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	row, err := rows.Next(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, err
	}
	return row, true, nil
}
