package command

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	gcmd "github.com/goliatone/go-command"

	"github.com/salmanaghayev/text-csv-or-excel/config"
	"github.com/salmanaghayev/text-csv-or-excel/export"
	"github.com/salmanaghayev/text-csv-or-excel/logging"
)

// CLI is the kong grammar of the logsheet binary.
type CLI struct {
	EnvFile   string `kong:"name='env-file',help='Environment file loaded before configuration',default='.env'"`
	LogLevel  string `kong:"name='log-level',help='Override LOGSHEET_LOG_LEVEL'"`
	LogFormat string `kong:"name='log-format',help='Override LOGSHEET_LOG_FORMAT (text or json)'"`

	Normalize normalizeCLI `kong:"cmd,help='${normalize_help}'"`
	Sheet     sheetCLI     `kong:"cmd,help='${sheet_help}'"`
	Export    exportCLI    `kong:"cmd,help='${export_help}'"`
	Batch     batchCLI     `kong:"cmd,help='${batch_help}'"`
	Watch     watchCLI     `kong:"cmd,help='${watch_help}'"`
}

// CLIOptions returns the CLI configuration of every handler, in command
// order.
func CLIOptions() []gcmd.CLIConfig {
	return []gcmd.CLIConfig{
		NewNormalizeHandler(nil).CLIOptions(),
		NewSheetHandler(nil).CLIOptions(),
		NewExportHandler(nil).CLIOptions(),
		NewBatchHandler(nil).CLIOptions(),
		NewWatchHandler(nil).CLIOptions(),
	}
}

// Vars exposes handler descriptions to the grammar as <path>_help. Pass it
// to kong.Parse or kong.New along with the CLI.
func Vars() kong.Vars {
	vars := kong.Vars{}
	for _, opts := range CLIOptions() {
		vars[strings.Join(opts.Path, "_")+"_help"] = opts.Description
	}
	return vars
}

// Setup loads the environment file and configuration, then configures
// logging. Flag overrides win over the environment.
func (c *CLI) Setup() (*Env, error) {
	if err := config.LoadDotEnv(c.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("configuration loaded", "config", cfg.String())
	return NewEnv(cfg, logger)
}

type normalizationFlags struct {
	Delimiter string `kong:"name='delimiter',short='d',help='Field delimiter; overrides LOGSHEET_DELIMITER'"`
	Rules     string `kong:"name='rules',short='r',help='YAML rules file',type='existingfile'"`
	SkipBlank bool   `kong:"name='skip-blank',help='Drop lines with no content'"`
}

func (f normalizationFlags) normalization() Normalization {
	return Normalization{Delimiter: f.Delimiter, RulesFile: f.Rules, SkipBlank: f.SkipBlank}
}

type normalizeCLI struct {
	Input  string `kong:"name='input',short='i',required,help='Text file to read'"`
	Output string `kong:"name='output',short='o',required,help='File to write, - for stdout'"`
	normalizationFlags
}

func (c *normalizeCLI) Run(ctx context.Context, env *Env) error {
	return NewNormalizeHandler(env).Execute(ctx, NormalizeLines{
		Input:         c.Input,
		Output:        c.Output,
		Normalization: c.normalization(),
	})
}

type sheetCLI struct {
	Input     string `kong:"name='input',short='i',required,help='Text file to read'"`
	Workbook  string `kong:"name='excel',short='e',required,help='Workbook to create or update'"`
	Sheet     string `kong:"name='sheet',short='s',help='Sheet name; defaults to the input file name'"`
	Auxiliary string `kong:"name='aux',short='a',help='Auxiliary file joined into an Extra Info column'"`
	normalizationFlags
}

func (c *sheetCLI) Run(ctx context.Context, env *Env) error {
	res := gcmd.NewResult[export.SheetResult]()
	err := NewSheetHandler(env).Execute(gcmd.ContextWithResult(ctx, res), WriteSheet{
		Input:         c.Input,
		Auxiliary:     c.Auxiliary,
		Workbook:      c.Workbook,
		Sheet:         c.Sheet,
		Normalization: c.normalization(),
	})
	if err != nil {
		return err
	}
	result, _ := res.Load()
	env.Logger.Info("sheet written", "sheet", result.Sheet, "workbook", c.Workbook, "rows", result.Rows, "run_id", result.RunID)
	return nil
}

type exportCLI struct {
	Input     string `kong:"name='input',short='i',required,help='Text file to read'"`
	Format    string `kong:"name='format',short='f',default='csv',enum='csv,json,ndjson,xlsx,sqlite',help='Output format'"`
	OutDir    string `kong:"name='out',short='o',required,help='Directory receiving the artifact'"`
	Sheet     string `kong:"name='sheet',short='s',help='Sheet name; defaults to the input file name'"`
	Name      string `kong:"name='name',help='Artifact name template, e.g. {{.Sheet}}-{{.Date}}'"`
	Auxiliary string `kong:"name='aux',short='a',help='Auxiliary file joined into an Extra Info column'"`
	normalizationFlags
}

func (c *exportCLI) Run(ctx context.Context, env *Env) error {
	return NewExportHandler(env).Execute(ctx, ExportSheet{
		Input:         c.Input,
		Auxiliary:     c.Auxiliary,
		Format:        export.Format(c.Format),
		OutDir:        c.OutDir,
		Sheet:         c.Sheet,
		NameTemplate:  c.Name,
		Normalization: c.normalization(),
	})
}

type batchFlags struct {
	Manifest string `kong:"name='manifest',short='m',required,type='existingfile',help='YAML manifest'"`
	Workbook string `kong:"name='excel',short='e',help='Workbook; overrides the manifest'"`
	Format   string `kong:"name='format',short='f',help='Write one artifact per sheet in this format instead of a workbook'"`
	OutDir   string `kong:"name='out',short='o',help='Directory for per-sheet artifacts'"`
	Parallel int    `kong:"name='parallel',short='p',help='Sheets written at once; overrides LOGSHEET_PARALLEL'"`
}

func (f batchFlags) message() RunBatch {
	return RunBatch{
		Manifest: f.Manifest,
		Workbook: f.Workbook,
		Format:   export.Format(f.Format),
		OutDir:   f.OutDir,
		Parallel: f.Parallel,
	}
}

type batchCLI struct {
	batchFlags
}

func (c *batchCLI) Run(ctx context.Context, env *Env) error {
	res := gcmd.NewResult[export.BatchResult]()
	err := NewBatchHandler(env).Execute(gcmd.ContextWithResult(ctx, res), c.message())
	result, _ := res.Load()
	for _, sheet := range result.Sheets {
		if sheet.Err != nil {
			env.Logger.Error("sheet failed", "sheet", sheet.Sheet, "kind", sheet.ErrorKind, "run_id", sheet.RunID)
			continue
		}
		env.Logger.Info("sheet written", "sheet", sheet.Sheet, "rows", sheet.Rows, "duration", sheet.Duration)
	}
	return err
}

type watchCLI struct {
	batchFlags
	Debounce time.Duration `kong:"name='debounce',help='Quiet period before re-running; overrides LOGSHEET_WATCH_DEBOUNCE'"`
}

func (c *watchCLI) Run(ctx context.Context, env *Env) error {
	return NewWatchHandler(env).Execute(ctx, WatchBatch{RunBatch: c.message(), Debounce: c.Debounce})
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch export.KindFromError(err) {
	case export.KindValidation:
		return 2
	default:
		return 1
	}
}

// Fatal logs err and exits with its exit code.
func Fatal(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("logsheet failed", "error", err)
	os.Exit(ExitCode(err))
}
