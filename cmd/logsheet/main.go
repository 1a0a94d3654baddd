package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/salmanaghayev/text-csv-or-excel/command"
)

func main() {
	var cli command.CLI
	kctx := kong.Parse(&cli,
		kong.Name("logsheet"),
		kong.Description("Turn semi-structured text logs into CSV, spreadsheet, JSON or SQLite tables."),
		kong.UsageOnError(),
		command.Vars(),
	)

	env, err := cli.Setup()
	if err != nil {
		command.Fatal(nil, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(env)
	stop()
	if err != nil {
		command.Fatal(env.Logger, err)
	}
}
