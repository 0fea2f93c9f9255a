package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&compileCmd{}, "")
	subcommands.Register(&fetchCmd{}, "")
	subcommands.Register(&cacheCmd{}, "")
	subcommands.Register(&importCmd{}, "")

	verbose := flag.Bool("v", false, "Log debug messages")
	flag.Parse()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}
