package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MemorySheet is a sheet held by MemorySink.
type MemorySheet struct {
	Schema Schema
	Rows   []Row
}

// MemorySink keeps written sheets in memory (tests and dry runs).
type MemorySink struct {
	mu     sync.RWMutex
	sheets map[string]MemorySheet
	order  []string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{sheets: make(map[string]MemorySheet)}
}

// WriteSheet implements Sink.
func (s *MemorySink) WriteSheet(ctx context.Context, sheet string, schema Schema, rows RowIterator) (RenderStats, error) {
	if rows == nil {
		return RenderStats{}, NewError(KindValidation, "rows are required", nil)
	}
	name, err := SanitizeSheetName(sheet)
	if err != nil {
		return RenderStats{}, err
	}
	collected, err := Collect(ctx, rows)
	if err != nil {
		return RenderStats{Rows: int64(len(collected))}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheets == nil {
		s.sheets = make(map[string]MemorySheet)
	}
	if _, exists := s.sheets[name]; !exists {
		s.order = append(s.order, name)
	}
	s.sheets[name] = MemorySheet{Schema: schema, Rows: collected}
	return RenderStats{Rows: int64(len(collected))}, nil
}

// Sheet returns a written sheet.
func (s *MemorySink) Sheet(name string) (MemorySheet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheet, ok := s.sheets[name]
	return sheet, ok
}

// Names lists sheets in first-write order.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
