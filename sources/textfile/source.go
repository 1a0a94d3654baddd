// Package exporttext reads line-oriented text logs as export rows.
package exporttext

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

const maxLineBytes = 1024 * 1024

// Option configures a Source.
type Option func(*Source)

// WithNormalizer sets the normalizer applied to every line.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(s *Source) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithSkipBlank drops lines whose fields are all empty.
func WithSkipBlank(skip bool) Option {
	return func(s *Source) {
		s.skipBlank = skip
	}
}

// Source is an export.RowSource over a text file or reader. The first line
// is the header, so the schema is empty only for empty input.
type Source struct {
	path       string
	reader     io.Reader
	normalizer *textnorm.Normalizer
	skipBlank  bool
	consumed   atomic.Bool
}

// NewFileSource reads path on every Open.
func NewFileSource(path string, opts ...Option) *Source {
	return newSource(path, nil, opts)
}

// NewReaderSource reads r. It can be opened once.
func NewReaderSource(r io.Reader, opts ...Option) *Source {
	return newSource("", r, opts)
}

func newSource(path string, r io.Reader, opts []Option) *Source {
	s := &Source{path: path, reader: r}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.normalizer == nil {
		s.normalizer = textnorm.Default()
	}
	return s
}

// Path is the file the source reads, if any.
func (s *Source) Path() string {
	return s.path
}

// Open implements export.RowSource.
func (s *Source) Open(ctx context.Context) (export.RowIterator, export.Schema, error) {
	if s == nil {
		return nil, export.Schema{}, export.NewError(export.KindValidation, "text source is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, export.Schema{}, err
	}

	var (
		r      io.Reader
		closer io.Closer
	)
	switch {
	case s.path != "":
		file, err := openFile(s.path, "input")
		if err != nil {
			return nil, export.Schema{}, err
		}
		r, closer = file, file
	case s.reader != nil:
		if s.consumed.Swap(true) {
			return nil, export.Schema{}, export.NewError(export.KindValidation, "reader source already consumed", nil)
		}
		r = s.reader
	default:
		return nil, export.Schema{}, export.NewError(export.KindValidation, "text source requires a path or reader", nil)
	}

	it := &lineIterator{
		scanner:    newScanner(r),
		closer:     closer,
		normalizer: s.normalizer,
		skipBlank:  s.skipBlank,
		name:       s.name(),
	}
	header, err := it.Next(ctx)
	if err != nil {
		if err == io.EOF {
			return it, export.Schema{}, nil
		}
		_ = it.Close()
		return nil, export.Schema{}, err
	}
	return it, export.NewSchema(header), nil
}

func (s *Source) name() string {
	if s.path != "" {
		return s.path
	}
	return "reader"
}

type lineIterator struct {
	scanner    *bufio.Scanner
	closer     io.Closer
	normalizer *textnorm.Normalizer
	skipBlank  bool
	name       string
	line       int
}

func (it *lineIterator) Next(ctx context.Context) (export.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !it.scanner.Scan() {
			if err := it.scanner.Err(); err != nil {
				return nil, export.NewError(export.KindPersistence, fmt.Sprintf("read %s line %d", it.name, it.line+1), err)
			}
			return nil, io.EOF
		}
		it.line++
		fields := it.normalizer.Fields(strings.TrimSuffix(it.scanner.Text(), "\r"))
		if it.skipBlank && textnorm.IsBlank(fields) {
			continue
		}
		return export.Row(fields), nil
	}
}

func (it *lineIterator) Close() error {
	if it.closer == nil {
		return nil
	}
	err := it.closer.Close()
	it.closer = nil
	return err
}

// ReadLines returns the lines of path without line terminators.
func ReadLines(ctx context.Context, path string) ([]string, error) {
	file, err := openFile(path, "input")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := newScanner(file)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, export.NewError(export.KindPersistence, fmt.Sprintf("read %s", path), err)
	}
	return lines, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func openFile(path, role string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, export.NewError(export.KindNotFound, fmt.Sprintf("%s file %q not found", role, path), err)
		}
		return nil, export.NewError(export.KindPersistence, fmt.Sprintf("open %s file %q", role, path), err)
	}
	return file, nil
}
