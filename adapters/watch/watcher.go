// Package watch re-runs work when input files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// Config selects the files to watch and how bursts of changes coalesce.
type Config struct {
	// Paths are the files to watch. Their directories are watched so
	// editors that replace files by rename are still seen.
	Paths    []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Start watches cfg.Paths and emits the sorted set of changed paths once
// events stop arriving for the debounce interval. The channel is closed
// when ctx is done.
func Start(ctx context.Context, cfg Config) (<-chan []string, error) {
	if len(cfg.Paths) == 0 {
		return nil, export.NewError(export.KindValidation, "no paths to watch", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce < 0 {
		debounce = 0
	}

	targets := make(map[string]struct{}, len(cfg.Paths))
	dirs := make(map[string]struct{})
	for _, path := range cfg.Paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, export.NewError(export.KindValidation, fmt.Sprintf("invalid watch path %q", path), err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, export.NewError(export.KindInternal, "create watcher", err)
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			kind := export.KindPersistence
			if errors.Is(err, fs.ErrNotExist) {
				kind = export.KindNotFound
			}
			return nil, export.NewError(kind, fmt.Sprintf("watch directory %q", dir), err)
		}
		logger.Debug("watching directory", "dir", dir)
	}

	out := make(chan []string, 1)
	go loop(ctx, w, targets, debounce, logger, out)
	return out, nil
}

// Run calls fn for every batch of changes until ctx is done. Errors from
// fn are logged and watching continues.
func Run(ctx context.Context, cfg Config, fn func(ctx context.Context, changed []string) error) error {
	if fn == nil {
		return export.NewError(export.KindValidation, "watch callback is required", nil)
	}
	changes, err := Start(ctx, cfg)
	if err != nil {
		return err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for changed := range changes {
		logger.Info("inputs changed", "paths", changed)
		if err := fn(ctx, changed); err != nil {
			logger.Error("watch run failed", "error", err)
		}
	}
	return nil
}

func loop(ctx context.Context, w *fsnotify.Watcher, targets map[string]struct{}, debounce time.Duration, logger *slog.Logger, out chan<- []string) {
	defer close(out)
	defer func() {
		if err := w.Close(); err != nil {
			logger.Warn("closing watcher", "error", err)
		}
	}()

	pending := make(map[string]struct{})
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		batch := make([]string, 0, len(pending))
		for path := range pending {
			batch = append(batch, path)
		}
		sort.Strings(batch)
		clear(pending)
		select {
		case out <- batch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if !relevant(e, targets) {
				continue
			}
			pending[e.Name] = struct{}{}
			if debounce == 0 {
				if !flush() {
					return
				}
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", "error", err)
		case <-fire:
			fire = nil
			if !flush() {
				return
			}
		}
	}
}

func relevant(e fsnotify.Event, targets map[string]struct{}) bool {
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
		return false
	}
	_, ok := targets[filepath.Clean(e.Name)]
	return ok
}
