package command

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli,
		kong.Name("logsheet"),
		kong.Exit(func(int) { t.Fatalf("unexpected exit") }),
		kong.Writers(&bytes.Buffer{}, &bytes.Buffer{}),
		Vars(),
	)
	if err != nil {
		t.Fatalf("build parser: %v", err)
	}
	return parser
}

func TestCLI_CommandsFollowHandlerOptions(t *testing.T) {
	var cli CLI
	parser := newParser(t, &cli)

	options := CLIOptions()
	commands := parser.Model.Children
	if len(commands) != len(options) {
		t.Fatalf("expected %d commands, got %d", len(options), len(commands))
	}
	for i, opts := range options {
		if opts.Group != "logsheet" {
			t.Fatalf("%v: unexpected group %q", opts.Path, opts.Group)
		}
		if len(opts.Path) != 1 || commands[i].Name != opts.Path[0] {
			t.Fatalf("command %d: expected path %v, got %q", i, opts.Path, commands[i].Name)
		}
		if commands[i].Help != opts.Description {
			t.Fatalf("%s: expected help %q, got %q", commands[i].Name, opts.Description, commands[i].Help)
		}
	}
}

func TestCLI_ParsesSheetFlags(t *testing.T) {
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"sheet", "-i", "status.txt", "-e", "book.xlsx", "-s", "Routers", "-a", "extra.txt", "-d", "tab"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if kctx.Command() != "sheet" {
		t.Fatalf("unexpected command %q", kctx.Command())
	}
	got := cli.Sheet
	if got.Input != "status.txt" || got.Workbook != "book.xlsx" || got.Sheet != "Routers" || got.Auxiliary != "extra.txt" || got.Delimiter != "tab" {
		t.Fatalf("unexpected flags %+v", got)
	}
	if cli.EnvFile != ".env" {
		t.Fatalf("expected default env file, got %q", cli.EnvFile)
	}
}

func TestCLI_ExportFormat(t *testing.T) {
	var cli CLI
	if _, err := newParser(t, &cli).Parse([]string{"export", "-i", "a.txt", "-o", "out"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cli.Export.Format != "csv" {
		t.Fatalf("expected csv default, got %q", cli.Export.Format)
	}

	var bad CLI
	if _, err := newParser(t, &bad).Parse([]string{"export", "-i", "a.txt", "-o", "out", "-f", "pdf"}); err == nil {
		t.Fatalf("expected unknown format to be rejected")
	}
}

func TestCLI_RequiresInput(t *testing.T) {
	var cli CLI
	if _, err := newParser(t, &cli).Parse([]string{"normalize", "-o", "out.csv"}); err == nil {
		t.Fatalf("expected missing --input to fail")
	}
}

func TestCLI_RunNormalize(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "status.txt", "Host  State\nhost1:  up |  down\n")

	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"normalize", "-i", input, "-o", "-"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	if err := kctx.Run(env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := env.Stdout.(*bytes.Buffer).String(); got != "Host;State\nhost1=;up |;down\n" {
		t.Fatalf("unexpected stdout %q", got)
	}
}

func TestCLI_RunBatchReportsFailure(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	manifest := writeManifest(t, dir, "workbook: book.xlsx\nsheets:\n  - input: missing.txt\n")

	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"batch", "-m", manifest})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	err = kctx.Run(env)
	if err == nil {
		t.Fatalf("expected batch failure")
	}
	if code := ExitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestCLI_Setup(t *testing.T) {
	t.Setenv("LOGSHEET_PARALLEL", "3")
	cli := CLI{EnvFile: filepath.Join(t.TempDir(), "absent.env"), LogLevel: "debug", LogFormat: "json"}

	env, err := cli.Setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if env.Config.Parallel != 3 {
		t.Fatalf("expected parallel from environment, got %d", env.Config.Parallel)
	}
	if env.Config.Logging.Level != "debug" || env.Config.Logging.Format != "json" {
		t.Fatalf("expected flag overrides, got %+v", env.Config.Logging)
	}
	if _, ok := env.Renderers.Resolve(export.FormatSQLite); !ok {
		t.Fatalf("expected sqlite renderer to be registered")
	}
}

func TestCLI_SetupRejectsBadEnvironment(t *testing.T) {
	t.Setenv("LOGSHEET_PARALLEL", "0")
	cli := CLI{EnvFile: filepath.Join(t.TempDir(), "absent.env")}
	if _, err := cli.Setup(); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("expected 0 for nil")
	}
	validation := errors.New("bad flag", errors.CategoryValidation)
	if ExitCode(validation) != 2 {
		t.Fatalf("expected 2 for validation errors")
	}
	if ExitCode(export.NewError(export.KindPersistence, "disk", nil)) != 1 {
		t.Fatalf("expected 1 for other errors")
	}
}
