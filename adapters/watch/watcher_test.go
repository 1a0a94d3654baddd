package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

func TestStart_EmitsDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "status.txt")
	other := filepath.Join(dir, "ignored.txt")
	if err := os.WriteFile(input, []byte("a\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := Start(ctx, Config{Paths: []string{input}, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(other, []byte("x\n"), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(input, []byte("b\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case batch := <-changes:
		abs, _ := filepath.Abs(input)
		if len(batch) != 1 || batch[0] != abs {
			t.Fatalf("expected only %s, got %v", abs, batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for change")
	}

	cancel()
	closed := make(chan struct{})
	go func() {
		for range changes {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected channel to close after cancel")
	}
}

func TestRun_CallsFunction(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "status.txt")
	if err := os.WriteFile(input, []byte("a\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := make(chan []string, 4)
	done := make(chan error, 1)
	ready := make(chan struct{})

	go func() {
		close(ready)
		done <- Run(ctx, Config{Paths: []string{input}, Debounce: 20 * time.Millisecond}, func(ctx context.Context, changed []string) error {
			select {
			case calls <- changed:
			default:
			}
			return export.NewError(export.KindPersistence, "ignored", nil)
		})
	}()
	<-ready

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-calls:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("run: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(input, []byte("b\n"), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for callback")
		}
	}
}

func TestStart_Validation(t *testing.T) {
	if _, err := Start(context.Background(), Config{}); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err := Start(context.Background(), Config{Paths: []string{filepath.Join(t.TempDir(), "missing", "file.txt")}})
	if export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := Run(context.Background(), Config{Paths: []string{"x"}}, nil); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
