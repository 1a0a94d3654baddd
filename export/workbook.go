package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

// WorkbookSink writes sheets into a single workbook file. The file is
// created on first use; existing sheets of the same name are replaced and
// every write is saved before WriteSheet returns.
type WorkbookSink struct {
	Path    string
	Style   *SheetStyle
	MaxRows int
	Logger  Logger

	mu sync.Mutex
}

// NewWorkbookSink creates a sink with the default style.
func NewWorkbookSink(path string) *WorkbookSink {
	return &WorkbookSink{Path: path, Style: DefaultSheetStyle(), Logger: NopLogger{}}
}

// WriteSheet implements Sink.
func (s *WorkbookSink) WriteSheet(ctx context.Context, sheet string, schema Schema, rows RowIterator) (RenderStats, error) {
	if s == nil || s.Path == "" {
		return RenderStats{}, NewError(KindValidation, "workbook path is required", nil)
	}
	if rows == nil {
		return RenderStats{}, NewError(KindValidation, "rows are required", nil)
	}
	name, err := SanitizeSheetName(sheet)
	if err != nil {
		return RenderStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return RenderStats{}, err
	}

	file, created, err := s.open()
	if err != nil {
		return RenderStats{}, err
	}
	defer func() {
		_ = file.Close()
	}()

	if err := s.prepareSheet(file, name); err != nil {
		return RenderStats{}, err
	}

	stats, err := writeSheet(ctx, file, name, schema, rows, true, s.MaxRows, s.Style)
	if err != nil {
		return stats, err
	}

	if created && name != defaultSheetName {
		if err := file.DeleteSheet(defaultSheetName); err != nil {
			return stats, NewError(KindPersistence, "drop default sheet", err)
		}
	}
	if idx, err := file.GetSheetIndex(name); err == nil && idx >= 0 {
		file.SetActiveSheet(idx)
	}

	size, err := s.save(file)
	if err != nil {
		return stats, err
	}
	stats.Bytes = size
	s.logger().Infof("sheet.write.ok sheet=%q path=%q rows=%d bytes=%d", name, s.Path, stats.Rows, stats.Bytes)
	return stats, nil
}

// Sheets lists the sheets currently saved in the workbook.
func (s *WorkbookSink) Sheets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := excelize.OpenFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewError(KindNotFound, fmt.Sprintf("workbook %q not found", s.Path), err)
		}
		return nil, NewError(KindPersistence, "open workbook", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return file.GetSheetList(), nil
}

func (s *WorkbookSink) open() (*excelize.File, bool, error) {
	_, err := os.Stat(s.Path)
	switch {
	case err == nil:
		file, err := excelize.OpenFile(s.Path)
		if err != nil {
			return nil, false, NewError(KindPersistence, fmt.Sprintf("open workbook %q", s.Path), err)
		}
		return file, false, nil
	case errors.Is(err, fs.ErrNotExist):
		return excelize.NewFile(), true, nil
	default:
		return nil, false, NewError(KindPersistence, fmt.Sprintf("stat workbook %q", s.Path), err)
	}
}

// prepareSheet leaves an empty worksheet called name at the end of the
// workbook.
func (s *WorkbookSink) prepareSheet(file *excelize.File, name string) error {
	idx, err := file.GetSheetIndex(name)
	if err != nil {
		return NewError(KindValidation, fmt.Sprintf("invalid sheet name %q", name), err)
	}
	if idx < 0 {
		if _, err := file.NewSheet(name); err != nil {
			return NewError(KindPersistence, fmt.Sprintf("create sheet %q", name), err)
		}
		return nil
	}

	s.logger().Infof("sheet exists, overwriting sheet=%q path=%q", name, s.Path)
	placeholder := placeholderName(file)
	if _, err := file.NewSheet(placeholder); err != nil {
		return NewError(KindPersistence, "create placeholder sheet", err)
	}
	if err := file.DeleteSheet(name); err != nil {
		return NewError(KindPersistence, fmt.Sprintf("delete sheet %q", name), err)
	}
	if err := file.SetSheetName(placeholder, name); err != nil {
		return NewError(KindPersistence, fmt.Sprintf("rename sheet %q", name), err)
	}
	return nil
}

func placeholderName(file *excelize.File) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("__replace_%d", i)
		if idx, _ := file.GetSheetIndex(candidate); idx < 0 {
			return candidate
		}
	}
}

func (s *WorkbookSink) save(file *excelize.File) (int64, error) {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, NewError(KindPersistence, fmt.Sprintf("create directory %q", dir), err)
	}
	tmp, err := os.CreateTemp(dir, ".workbook-*")
	if err != nil {
		return 0, NewError(KindPersistence, "create temp workbook", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	cw := &countingWriter{w: tmp}
	if _, err := file.WriteTo(cw); err != nil {
		return 0, NewError(KindPersistence, "write workbook", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, NewError(KindPersistence, "sync workbook", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, NewError(KindPersistence, "close workbook", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return 0, NewError(KindPersistence, fmt.Sprintf("save workbook %q", s.Path), err)
	}
	return cw.count, nil
}

func (s *WorkbookSink) logger() Logger {
	if s.Logger == nil {
		return NopLogger{}
	}
	return s.Logger
}
