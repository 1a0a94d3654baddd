package export

import (
	"context"
	"errors"
	"io"
	"sync"
)

type stubIterator struct {
	rows   []Row
	index  int
	closed bool
}

func (it *stubIterator) Next(ctx context.Context) (Row, error) {
	_ = ctx
	if it.index >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *stubIterator) Close() error {
	it.closed = true
	return nil
}

type stubSource struct {
	schema Schema
	rows   []Row
	err    error
	iter   *stubIterator
}

func (s *stubSource) Open(ctx context.Context) (RowIterator, Schema, error) {
	_ = ctx
	if s.err != nil {
		return nil, Schema{}, s.err
	}
	s.iter = &stubIterator{rows: s.rows}
	return s.iter, s.schema, nil
}

type failingSink struct {
	fail map[string]error
	next Sink
}

func (s *failingSink) WriteSheet(ctx context.Context, sheet string, schema Schema, rows RowIterator) (RenderStats, error) {
	if err, ok := s.fail[sheet]; ok {
		return RenderStats{}, err
	}
	return s.next.WriteSheet(ctx, sheet, schema, rows)
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []MetricsEvent
}

func (m *recordingMetrics) Emit(ctx context.Context, evt MetricsEvent) error {
	_ = ctx
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return nil
}

func (m *recordingMetrics) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, evt := range m.events {
		out[i] = evt.Name
	}
	return out
}

var errDisk = errors.New("disk full")
