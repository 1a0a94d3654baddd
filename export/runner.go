package export

import (
	"context"
	"errors"
	"time"

	errorslib "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner moves rows from a job's source through its transformers into a
// sink.
type Runner struct {
	Logger      Logger
	Metrics     MetricsHook
	Now         func() time.Time
	IDGenerator func() string
	// Parallel bounds how many jobs of a batch run at once.
	Parallel int
}

// NewRunner creates a runner with defaults.
func NewRunner() *Runner {
	return &Runner{
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: uuid.NewString,
		Parallel:    1,
	}
}

// Run writes one job to sink.
func (r *Runner) Run(ctx context.Context, job SheetJob, sink Sink) (SheetResult, error) {
	if r == nil {
		return SheetResult{}, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info := runInfo{runID: r.nextID(), sheet: job.Name, startedAt: r.now()}
	result := SheetResult{RunID: info.runID, Sheet: job.Name}

	r.logger().Debugf("sheet.run.start run_id=%s sheet=%q", info.runID, job.Name)
	r.emitMetrics(ctx, info, "sheet.started", RenderStats{}, nil)

	if err := validateJob(job, sink); err != nil {
		return r.fail(ctx, info, result, err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, info, result, err)
	}

	rows, schema, err := job.Source.Open(ctx)
	if err != nil {
		return r.fail(ctx, info, result, err)
	}

	wrapped, schema, err := ApplyTransformers(ctx, rows, schema, job.Transformers)
	if err != nil {
		_ = rows.Close()
		return r.fail(ctx, info, result, err)
	}
	defer wrapped.Close()

	stats, err := sink.WriteSheet(ctx, job.Name, schema, wrapped)
	result.Rows = stats.Rows
	result.Bytes = stats.Bytes
	if err != nil {
		return r.fail(ctx, info, result, err)
	}

	result.Duration = r.now().Sub(info.startedAt)
	r.logger().Infof("sheet.run.ok run_id=%s sheet=%q rows=%d bytes=%d duration=%s",
		info.runID, job.Name, stats.Rows, stats.Bytes, result.Duration)
	r.emitMetrics(ctx, info, "sheet.completed", stats, nil)
	return result, nil
}

// RunBatch runs every job. A failing job is recorded in the result and
// does not stop the others. The returned error aggregates all failures.
func (r *Runner) RunBatch(ctx context.Context, jobs []SheetJob, sink Sink) (BatchResult, error) {
	if r == nil {
		return BatchResult{}, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	collector := errorslib.NewCollector(
		errorslib.WithContext(ctx),
		errorslib.WithMaxErrors(max(len(jobs), 1)),
	)
	results := make([]SheetResult, len(jobs))

	var group errgroup.Group
	group.SetLimit(max(r.Parallel, 1))
	for i, job := range jobs {
		group.Go(func() error {
			result, err := r.Run(ctx, job, sink)
			results[i] = result
			if err != nil {
				collector.Add(AsGoError(err).Clone().WithMetadata(map[string]any{
					"sheet":  job.Name,
					"run_id": result.RunID,
				}))
			}
			return nil
		})
	}
	_ = group.Wait()

	batch := BatchResult{Sheets: results, Errors: collector}
	if merged := collector.Merge(); merged != nil {
		r.logger().Errorf("batch.failed sheets=%d failed=%d", len(jobs), batch.Failed())
		return batch, merged
	}
	r.logger().Infof("batch.ok sheets=%d", len(jobs))
	return batch, nil
}

func validateJob(job SheetJob, sink Sink) error {
	if job.Name == "" {
		return NewError(KindValidation, "sheet name is required", nil)
	}
	if job.Source == nil {
		return NewError(KindValidation, "row source is required", nil)
	}
	if sink == nil {
		return NewError(KindValidation, "sink is required", nil)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, info runInfo, result SheetResult, err error) (SheetResult, error) {
	result.Duration = r.now().Sub(info.startedAt)
	result.ErrorKind = KindFromError(err)
	result.Err = err

	name := "sheet.failed"
	if errors.Is(err, context.Canceled) {
		name = "sheet.canceled"
	}
	r.logger().Errorf("%s run_id=%s sheet=%q kind=%s err=%v", name, info.runID, info.sheet, result.ErrorKind, err)
	r.emitMetrics(ctx, info, name, RenderStats{Rows: result.Rows, Bytes: result.Bytes}, err)
	return result, AsGoError(err)
}

func (r *Runner) emitMetrics(ctx context.Context, info runInfo, name string, stats RenderStats, err error) {
	if r.Metrics == nil {
		return
	}
	now := r.now()
	kind := ErrorKind("")
	if err != nil {
		kind = KindFromError(err)
	}
	_ = r.Metrics.Emit(ctx, MetricsEvent{
		Name:      name,
		RunID:     info.runID,
		Sheet:     info.sheet,
		Rows:      stats.Rows,
		Bytes:     stats.Bytes,
		Duration:  now.Sub(info.startedAt),
		ErrorKind: kind,
		Timestamp: now,
	})
}

type runInfo struct {
	runID     string
	sheet     string
	startedAt time.Time
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) nextID() string {
	if r.IDGenerator == nil {
		return uuid.NewString()
	}
	return r.IDGenerator()
}

func (r *Runner) logger() Logger {
	if r.Logger == nil {
		return NopLogger{}
	}
	return r.Logger
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
