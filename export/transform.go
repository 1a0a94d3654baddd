package export

import (
	"context"
	"fmt"
	"io"
)

// RowMapFunc maps a row to a new row.
type RowMapFunc func(ctx context.Context, row Row) (Row, error)

// RowFilterFunc decides whether a row should be kept.
type RowFilterFunc func(ctx context.Context, row Row) (bool, error)

// RowAugmentFunc returns additional values to append to a row.
type RowAugmentFunc func(ctx context.Context, row Row) ([]string, error)

// LookupFunc returns the value appended to a data row.
type LookupFunc func(row Row) string

// LookupLoader prepares a LookupFunc once per run.
type LookupLoader func(ctx context.Context) (LookupFunc, error)

// MapTransformer applies a mapping function to each row.
type MapTransformer struct {
	MapFunc RowMapFunc
}

// NewMapTransformer creates a MapTransformer.
func NewMapTransformer(fn RowMapFunc) MapTransformer {
	return MapTransformer{MapFunc: fn}
}

// Wrap implements RowTransformer.
func (t MapTransformer) Wrap(ctx context.Context, in RowIterator, schema Schema) (RowIterator, Schema, error) {
	if t.MapFunc == nil {
		return nil, Schema{}, NewError(KindValidation, "map transformer function is required", nil)
	}
	return &mapIterator{base: in, mapFn: t.MapFunc}, schema, nil
}

// FilterTransformer drops rows that do not pass the filter.
type FilterTransformer struct {
	FilterFunc RowFilterFunc
}

// NewFilterTransformer creates a FilterTransformer.
func NewFilterTransformer(fn RowFilterFunc) FilterTransformer {
	return FilterTransformer{FilterFunc: fn}
}

// Wrap implements RowTransformer.
func (t FilterTransformer) Wrap(ctx context.Context, in RowIterator, schema Schema) (RowIterator, Schema, error) {
	if t.FilterFunc == nil {
		return nil, Schema{}, NewError(KindValidation, "filter transformer function is required", nil)
	}
	return &filterIterator{base: in, filterFn: t.FilterFunc}, schema, nil
}

// SkipBlankRows drops rows whose fields are all empty.
func SkipBlankRows() FilterTransformer {
	return NewFilterTransformer(func(ctx context.Context, row Row) (bool, error) {
		for _, field := range row {
			if field != "" {
				return true, nil
			}
		}
		return false, nil
	})
}

// AugmentTransformer appends derived columns to each row.
type AugmentTransformer struct {
	Labels      []string
	AugmentFunc RowAugmentFunc
}

// NewAugmentTransformer creates an AugmentTransformer.
func NewAugmentTransformer(labels []string, fn RowAugmentFunc) AugmentTransformer {
	return AugmentTransformer{Labels: labels, AugmentFunc: fn}
}

// Wrap implements RowTransformer.
func (t AugmentTransformer) Wrap(ctx context.Context, in RowIterator, schema Schema) (RowIterator, Schema, error) {
	if t.AugmentFunc == nil {
		return nil, Schema{}, NewError(KindValidation, "augment transformer function is required", nil)
	}
	if len(t.Labels) == 0 {
		return nil, Schema{}, NewError(KindValidation, "augment transformer labels are required", nil)
	}
	nextSchema := NewSchema(append(schema.Labels(), t.Labels...))
	return &augmentIterator{
		base:       in,
		augmentFn:  t.AugmentFunc,
		augmentLen: len(t.Labels),
	}, nextSchema, nil
}

// LookupTransformer appends one looked-up field to every row. The lookup
// is loaded when the pipeline is assembled so its failures belong to the
// sheet being written.
type LookupTransformer struct {
	Label string
	Load  LookupLoader
}

// NewLookupTransformer creates a LookupTransformer.
func NewLookupTransformer(label string, load LookupLoader) LookupTransformer {
	return LookupTransformer{Label: label, Load: load}
}

// Wrap implements RowTransformer.
func (t LookupTransformer) Wrap(ctx context.Context, in RowIterator, schema Schema) (RowIterator, Schema, error) {
	if t.Load == nil {
		return nil, Schema{}, NewError(KindValidation, "lookup loader is required", nil)
	}
	if t.Label == "" {
		return nil, Schema{}, NewError(KindValidation, "lookup label is required", nil)
	}
	lookup, err := t.Load(ctx)
	if err != nil {
		return nil, Schema{}, err
	}
	if lookup == nil {
		return nil, Schema{}, NewError(KindValidation, "lookup loader returned nil", nil)
	}
	// no header means no input: there is nothing to label
	if schema.Width() == 0 {
		return in, schema, nil
	}
	return NewAugmentTransformer([]string{t.Label}, func(ctx context.Context, row Row) ([]string, error) {
		return []string{lookup(row)}, nil
	}).Wrap(ctx, in, schema)
}

// ApplyTransformers wraps rows with every transformer in order.
func ApplyTransformers(ctx context.Context, rows RowIterator, schema Schema, transformers []RowTransformer) (RowIterator, Schema, error) {
	currentRows := rows
	currentSchema := schema
	for idx, transformer := range transformers {
		if transformer == nil {
			return nil, Schema{}, NewError(KindValidation, fmt.Sprintf("transformer %d is nil", idx), nil)
		}
		wrapped, nextSchema, err := transformer.Wrap(ctx, currentRows, currentSchema)
		if err != nil {
			return nil, Schema{}, err
		}
		if wrapped == nil {
			return nil, Schema{}, NewError(KindValidation, fmt.Sprintf("transformer %d returned nil iterator", idx), nil)
		}
		currentRows = wrapped
		currentSchema = nextSchema
	}
	return currentRows, currentSchema, nil
}

type mapIterator struct {
	base  RowIterator
	mapFn RowMapFunc
}

func (it *mapIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := it.base.Next(ctx)
	if err != nil {
		return nil, err
	}
	return it.mapFn(ctx, row)
}

func (it *mapIterator) Close() error {
	return it.base.Close()
}

type filterIterator struct {
	base     RowIterator
	filterFn RowFilterFunc
}

func (it *filterIterator) Next(ctx context.Context) (Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := it.base.Next(ctx)
		if err != nil {
			return nil, err
		}
		keep, err := it.filterFn(ctx, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
	}
}

func (it *filterIterator) Close() error {
	return it.base.Close()
}

type augmentIterator struct {
	base       RowIterator
	augmentFn  RowAugmentFunc
	augmentLen int
}

func (it *augmentIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := it.base.Next(ctx)
	if err != nil {
		return nil, err
	}
	extra, err := it.augmentFn(ctx, row)
	if err != nil {
		return nil, err
	}
	if len(extra) != it.augmentLen {
		return nil, NewError(KindValidation, "augmented values do not match added columns", nil)
	}
	combined := make(Row, 0, len(row)+len(extra))
	combined = append(combined, row...)
	combined = append(combined, extra...)
	return combined, nil
}

func (it *augmentIterator) Close() error {
	return it.base.Close()
}

// NewSliceIterator iterates over rows in memory.
func NewSliceIterator(rows []Row) RowIterator {
	return &sliceIterator{rows: rows}
}

type sliceIterator struct {
	rows  []Row
	index int
}

func (it *sliceIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.index >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *sliceIterator) Close() error {
	return nil
}

// Collect drains rows into memory. rows is not closed.
func Collect(ctx context.Context, rows RowIterator) ([]Row, error) {
	var out []Row
	for {
		row, ok, err := nextRow(ctx, rows)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}
