package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"

	"github.com/salmanaghayev/text-csv-or-excel/adapters/metrics"
	exportsqlite "github.com/salmanaghayev/text-csv-or-excel/adapters/sqlite"
	storefs "github.com/salmanaghayev/text-csv-or-excel/adapters/store/fs"
	"github.com/salmanaghayev/text-csv-or-excel/adapters/watch"
	"github.com/salmanaghayev/text-csv-or-excel/config"
	"github.com/salmanaghayev/text-csv-or-excel/enrich"
	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/logging"
	exporttext "github.com/salmanaghayev/text-csv-or-excel/sources/textfile"
	"github.com/salmanaghayev/text-csv-or-excel/textnorm"
)

const cliGroup = "logsheet"

// Env carries what every handler needs.
type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Renderers *export.RendererRegistry
	Stdout    io.Writer
}

// NewEnv wires the renderer registry, including SQLite, and a fresh
// metrics registry.
func NewEnv(cfg *config.Config, logger *slog.Logger) (*Env, error) {
	if cfg == nil {
		return nil, errors.New("config is required", errors.CategoryInternal).
			WithTextCode("CONFIG_REQUIRED")
	}
	if logger == nil {
		logger = slog.Default()
	}
	renderers := export.DefaultRenderers()
	if err := exportsqlite.Register(renderers); err != nil {
		return nil, export.AsGoError(err)
	}
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		Renderers: renderers,
		Stdout:    os.Stdout,
	}, nil
}

func (e *Env) runner(parallel int) *export.Runner {
	runner := export.NewRunner()
	runner.Logger = logging.NewExportLogger(e.Logger)
	runner.Metrics = e.Metrics
	runner.Parallel = e.Config.Parallel
	if parallel > 0 {
		runner.Parallel = parallel
	}
	return runner
}

// normalizer resolves the delimiter as flag, then rules file, then
// environment.
func (e *Env) normalizer(n Normalization) (*textnorm.Normalizer, error) {
	var file textnorm.RuleFile
	if n.RulesFile != "" {
		f, err := os.Open(n.RulesFile)
		if err != nil {
			return nil, export.AsGoError(export.NewError(notFoundOr(err), fmt.Sprintf("open rules file %s", n.RulesFile), err))
		}
		defer f.Close()
		if file, err = textnorm.LoadRuleFile(f); err != nil {
			return nil, err
		}
	}
	if n.Delimiter != "" {
		file.Delimiter = n.Delimiter
	}
	return file.Build(e.Config.DelimiterRune())
}

func (e *Env) jobConfig(n *textnorm.Normalizer, skipBlank bool, auxiliary string) exporttext.JobConfig {
	logSkip := logging.SkipLogger(e.Logger, auxiliary)
	var onSkip enrich.SkipFunc = func(lineNo int, line string, fields []string) {
		e.Metrics.ObserveAuxSkip(lineNo, line, fields)
		logSkip(lineNo, line, fields)
	}
	return exporttext.JobConfig{
		Normalizer: n,
		SkipBlank:  skipBlank,
		OnSkip:     onSkip,
	}
}

func (e *Env) sheetStyle() *export.SheetStyle {
	style := export.DefaultSheetStyle()
	if style.Highlight != nil && e.Config.HighlightValue != "" {
		style.Highlight.Value = e.Config.HighlightValue
	}
	return style
}

func (e *Env) workbookSink(path string) *export.WorkbookSink {
	sink := export.NewWorkbookSink(path)
	sink.Style = e.sheetStyle()
	sink.Logger = logging.NewExportLogger(e.Logger)
	return sink
}

func (e *Env) rendererSink(format export.Format, outDir, nameTemplate string) (*export.RendererSink, error) {
	sink, err := export.NewRendererSink(e.Renderers, format, storefs.NewStore(outDir))
	if err != nil {
		return nil, export.AsGoError(err)
	}
	sink.NameTemplate = nameTemplate
	sink.Logger = logging.NewExportLogger(e.Logger)
	if format == export.FormatXLSX {
		sink.Options.XLSX.Style = e.sheetStyle()
	}
	return sink, nil
}

// flushMetrics writes the textfile when LOGSHEET_METRICS_FILE is set.
func (e *Env) flushMetrics() {
	if e.Config.MetricsFile == "" {
		return
	}
	if err := e.Metrics.WriteToTextfile(e.Config.MetricsFile); err != nil {
		e.Logger.Error("metrics textfile not written", "path", e.Config.MetricsFile, "error", err)
	}
}

func sheetName(explicit, input string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name, err := export.SheetNameFromPath(input)
	if err != nil {
		return "", export.AsGoError(err)
	}
	return name, nil
}

func notFoundOr(err error) export.ErrorKind {
	if os.IsNotExist(err) {
		return export.KindNotFound
	}
	return export.KindPersistence
}

// NormalizeHandler writes normalized lines.
type NormalizeHandler struct {
	Env *Env
}

func NewNormalizeHandler(env *Env) *NormalizeHandler {
	return &NormalizeHandler{Env: env}
}

func (h *NormalizeHandler) Execute(ctx context.Context, msg NormalizeLines) error {
	if h == nil || h.Env == nil {
		return errors.New("environment is required", errors.CategoryInternal).
			WithTextCode("ENV_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	n, err := h.Env.normalizer(msg.Normalization)
	if err != nil {
		return err
	}
	lines, err := exporttext.ReadLines(ctx, msg.Input)
	if err != nil {
		return export.AsGoError(err)
	}

	var buf bytes.Buffer
	written := 0
	for _, line := range lines {
		normalized := n.Normalize(line)
		if msg.SkipBlank || h.Env.Config.SkipBlank {
			if textnorm.IsBlank(textnorm.Split(normalized, n.Delimiter())) {
				continue
			}
		}
		buf.WriteString(normalized)
		buf.WriteByte('\n')
		written++
	}
	size := int64(buf.Len())

	if msg.Output == "-" {
		if _, err := buf.WriteTo(h.Env.Stdout); err != nil {
			return export.AsGoError(export.NewError(export.KindPersistence, "write stdout", err))
		}
	} else {
		store := storefs.NewStore(filepath.Dir(msg.Output))
		if _, err := store.Put(ctx, filepath.Base(msg.Output), &buf, export.ArtifactMeta{}); err != nil {
			return export.AsGoError(err)
		}
	}
	h.Env.Logger.Info("lines normalized", "input", msg.Input, "output", msg.Output, "lines", written)
	if res := gcmd.ResultFromContext[NormalizeResult](ctx); res != nil {
		res.Store(NormalizeResult{Lines: written, Bytes: size})
	}
	return nil
}

func (h *NormalizeHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"normalize"},
		Description: "Write every line of a text file normalized",
		Group:       cliGroup,
	}
}

// SheetHandler writes one sheet into a workbook.
type SheetHandler struct {
	Env *Env
}

func NewSheetHandler(env *Env) *SheetHandler {
	return &SheetHandler{Env: env}
}

func (h *SheetHandler) Execute(ctx context.Context, msg WriteSheet) error {
	if h == nil || h.Env == nil {
		return errors.New("environment is required", errors.CategoryInternal).
			WithTextCode("ENV_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	n, err := h.Env.normalizer(msg.Normalization)
	if err != nil {
		return err
	}
	name, err := sheetName(msg.Sheet, msg.Input)
	if err != nil {
		return err
	}

	job := exporttext.NewJob(name, msg.Input, msg.Auxiliary, h.Env.jobConfig(n, msg.SkipBlank || h.Env.Config.SkipBlank, msg.Auxiliary))
	result, err := h.Env.runner(0).Run(ctx, job, h.Env.workbookSink(msg.Workbook))
	h.Env.flushMetrics()
	if res := gcmd.ResultFromContext[export.SheetResult](ctx); res != nil {
		res.Store(result)
	}
	return err
}

func (h *SheetHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"sheet"},
		Description: "Write a text file as a styled workbook sheet",
		Group:       cliGroup,
	}
}

// ExportHandler renders one sheet as an artifact.
type ExportHandler struct {
	Env *Env
}

func NewExportHandler(env *Env) *ExportHandler {
	return &ExportHandler{Env: env}
}

func (h *ExportHandler) Execute(ctx context.Context, msg ExportSheet) error {
	if h == nil || h.Env == nil {
		return errors.New("environment is required", errors.CategoryInternal).
			WithTextCode("ENV_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	n, err := h.Env.normalizer(msg.Normalization)
	if err != nil {
		return err
	}
	name, err := sheetName(msg.Sheet, msg.Input)
	if err != nil {
		return err
	}
	sink, err := h.Env.rendererSink(msg.Format, msg.OutDir, msg.NameTemplate)
	if err != nil {
		return err
	}

	job := exporttext.NewJob(name, msg.Input, msg.Auxiliary, h.Env.jobConfig(n, msg.SkipBlank || h.Env.Config.SkipBlank, msg.Auxiliary))
	result, err := h.Env.runner(0).Run(ctx, job, sink)
	h.Env.flushMetrics()
	if res := gcmd.ResultFromContext[export.SheetResult](ctx); res != nil {
		res.Store(result)
	}
	if err != nil {
		return err
	}
	if ref, ok := sink.Artifact(name); ok {
		h.Env.Logger.Info("artifact written", "key", ref.Key, "bytes", ref.Meta.Size, "content_type", ref.Meta.ContentType)
	}
	return nil
}

func (h *ExportHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"export"},
		Description: "Render a text file as csv, json, ndjson, xlsx or sqlite",
		Group:       cliGroup,
	}
}

// BatchHandler writes every sheet of a manifest.
type BatchHandler struct {
	Env *Env
}

func NewBatchHandler(env *Env) *BatchHandler {
	return &BatchHandler{Env: env}
}

func (h *BatchHandler) Execute(ctx context.Context, msg RunBatch) error {
	if h == nil || h.Env == nil {
		return errors.New("environment is required", errors.CategoryInternal).
			WithTextCode("ENV_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	manifest, err := config.LoadManifest(msg.Manifest)
	if err != nil {
		return err
	}
	n, err := manifest.Normalizer(h.Env.Config.DelimiterRune())
	if err != nil {
		return err
	}
	skipBlank := manifest.SkipBlankOr(h.Env.Config.SkipBlank)

	var sink export.Sink
	if msg.Format != "" {
		if sink, err = h.Env.rendererSink(msg.Format, msg.OutDir, ""); err != nil {
			return err
		}
	} else {
		workbook := msg.Workbook
		if workbook == "" {
			workbook = manifest.Workbook
		}
		if workbook == "" {
			return errors.New("manifest has no workbook and none was given", errors.CategoryValidation).
				WithTextCode("WORKBOOK_REQUIRED")
		}
		sink = h.Env.workbookSink(workbook)
	}

	jobs := make([]export.SheetJob, 0, len(manifest.Sheets))
	for _, sheet := range manifest.Sheets {
		jobs = append(jobs, exporttext.NewJob(sheet.Name, sheet.Input, sheet.Auxiliary, h.Env.jobConfig(n, skipBlank, sheet.Auxiliary)))
	}

	batch, err := h.Env.runner(msg.Parallel).RunBatch(ctx, jobs, sink)
	h.Env.flushMetrics()
	if res := gcmd.ResultFromContext[export.BatchResult](ctx); res != nil {
		res.Store(batch)
	}
	if err != nil {
		if batch.Errors != nil {
			batch.Errors.LogErrors(h.Env.Logger)
		}
		failure := errors.New(fmt.Sprintf("%d of %d sheets failed", batch.Failed(), len(jobs)), errors.CategoryOperation).
			WithTextCode("BATCH_FAILED")
		failure.Source = err
		return failure
	}
	h.Env.Logger.Info("batch written", "manifest", msg.Manifest, "sheets", len(jobs))
	return nil
}

func (h *BatchHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"batch"},
		Description: "Write every sheet listed in a manifest",
		Group:       cliGroup,
	}
}

// WatchHandler re-runs a batch when its inputs change.
type WatchHandler struct {
	Env *Env
}

func NewWatchHandler(env *Env) *WatchHandler {
	return &WatchHandler{Env: env}
}

// Execute runs the batch once, then again after every change to the
// manifest or a file it names, until ctx is done. Failed runs are logged
// and watching continues.
func (h *WatchHandler) Execute(ctx context.Context, msg WatchBatch) error {
	if h == nil || h.Env == nil {
		return errors.New("environment is required", errors.CategoryInternal).
			WithTextCode("ENV_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	manifest, err := config.LoadManifest(msg.Manifest)
	if err != nil {
		return err
	}

	batch := NewBatchHandler(h.Env)
	if err := batch.Execute(ctx, msg.RunBatch); err != nil {
		h.Env.Logger.Error("initial batch failed", "manifest", msg.Manifest, "error", err)
	}

	debounce := h.Env.Config.WatchDebounce
	if msg.Debounce > 0 {
		debounce = msg.Debounce
	}
	cfg := watch.Config{
		Paths:    append(manifest.Inputs(), msg.Manifest),
		Debounce: debounce,
		Logger:   h.Env.Logger,
	}
	h.Env.Logger.Info("watching inputs", "manifest", msg.Manifest, "paths", len(cfg.Paths))
	err = watch.Run(ctx, cfg, func(ctx context.Context, changed []string) error {
		return batch.Execute(ctx, msg.RunBatch)
	})
	if err != nil {
		return export.AsGoError(err)
	}
	return nil
}

func (h *WatchHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"watch"},
		Description: "Re-run a manifest batch whenever its files change",
		Group:       cliGroup,
	}
}
