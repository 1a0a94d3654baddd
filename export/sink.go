package export

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"
)

// RendererSink renders each sheet with a Renderer and stores the result
// as one artifact per sheet.
type RendererSink struct {
	Format   Format
	Renderer Renderer
	Store    ArtifactStore
	Options  RenderOptions
	// NameTemplate is a text/template over Sheet, Format, Timestamp and
	// Date. The format extension is appended when missing.
	NameTemplate string
	Logger       Logger
	Now          func() time.Time

	mu   sync.Mutex
	refs map[string]ArtifactRef
}

// NewRendererSink resolves the renderer for format from registry.
func NewRendererSink(registry *RendererRegistry, format Format, store ArtifactStore) (*RendererSink, error) {
	if registry == nil {
		registry = DefaultRenderers()
	}
	renderer, ok := registry.Resolve(format)
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("renderer %q not registered", format), nil)
	}
	if store == nil {
		return nil, NewError(KindValidation, "artifact store is required", nil)
	}
	opts := RenderOptions{}
	if format == FormatNDJSON {
		opts.JSON.Mode = JSONModeLines
	}
	if format == FormatXLSX {
		opts.XLSX.Style = DefaultSheetStyle()
	}
	return &RendererSink{
		Format:   format,
		Renderer: renderer,
		Store:    store,
		Options:  opts,
		Logger:   NopLogger{},
		Now:      time.Now,
	}, nil
}

// WriteSheet implements Sink. The artifact key is stable per sheet so a
// second write replaces the first.
func (s *RendererSink) WriteSheet(ctx context.Context, sheet string, schema Schema, rows RowIterator) (RenderStats, error) {
	if s == nil || s.Renderer == nil || s.Store == nil {
		return RenderStats{}, NewError(KindValidation, "renderer sink is not configured", nil)
	}
	if rows == nil {
		return RenderStats{}, NewError(KindValidation, "rows are required", nil)
	}
	name, err := SanitizeSheetName(sheet)
	if err != nil {
		return RenderStats{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	key, err := renderFilename(s.NameTemplate, name, s.Format, now())
	if err != nil {
		return RenderStats{}, err
	}

	opts := s.Options
	opts.XLSX.SheetName = name
	if opts.SQLite.Table == "" {
		opts.SQLite.Table = name
	}

	var buf bytes.Buffer
	stats, err := s.Renderer.Render(ctx, schema, rows, &buf, opts)
	if err != nil {
		return stats, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ref, err := s.Store.Put(ctx, key, &buf, ArtifactMeta{
		ContentType: s.Format.ContentType(),
		Filename:    key,
		CreatedAt:   now(),
	})
	if err != nil {
		return stats, NewError(KindPersistence, fmt.Sprintf("store artifact %q", key), err)
	}
	if s.refs == nil {
		s.refs = make(map[string]ArtifactRef)
	}
	s.refs[name] = ref
	if s.Logger != nil {
		s.Logger.Infof("sheet.write.ok sheet=%q key=%q format=%s rows=%d bytes=%d", name, key, s.Format, stats.Rows, stats.Bytes)
	}
	return stats, nil
}

// Artifact returns the reference stored for a sheet.
func (s *RendererSink) Artifact(sheet string) (ArtifactRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[sheet]
	return ref, ok
}
