package export

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXRenderer renders a single-sheet workbook.
type XLSXRenderer struct{}

// Render writes rows into a new workbook and streams it to w.
func (r XLSXRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheetName := opts.XLSX.SheetName
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	sheetName, err := SanitizeSheetName(sheetName)
	if err != nil {
		return RenderStats{}, err
	}
	defaultSheet := file.GetSheetName(0)
	if defaultSheet != sheetName {
		if err := file.SetSheetName(defaultSheet, sheetName); err != nil {
			return RenderStats{}, err
		}
	}

	header := includeHeaders(opts.XLSX.HeadersSet, opts.XLSX.IncludeHeaders)
	stats, err := writeSheet(ctx, file, sheetName, schema, rows, header, opts.XLSX.MaxRows, opts.XLSX.Style)
	if err != nil {
		return stats, err
	}

	lw := newLimitedWriter(w, opts.XLSX.MaxBytes)
	if _, err := file.WriteTo(lw); err != nil {
		return stats, err
	}
	stats.Bytes = lw.count
	return stats, nil
}
