package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/eak1mov/go-minimaps/catalog"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type importCmd struct {
	inputPath  string
	outputPath string
}

func (c *importCmd) Name() string     { return "import_catalog" }
func (c *importCmd) Synopsis() string { return "create sqlite map catalog from a CSV export" }
func (c *importCmd) Usage() string {
	return "minimaps import_catalog -i <path> -o <path>\n"
}
func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input CSV file path")
	f.StringVar(&c.outputPath, "o", "", "Output sqlite file path")
}

func (c *importCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Println("both -i and -o are required")
		return subcommands.ExitUsageError
	}

	inputFile, err := os.Open(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer inputFile.Close()

	maps, err := catalog.ReadCSV(inputFile, slog.Default())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	writer, err := catalog.NewWriter(c.outputPath, catalog.WithLogger(slog.Default()))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer writer.Close()

	bar := progressbar.NewOptions(len(maps), progressbar.OptionShowIts(), progressbar.OptionShowCount())
	for _, m := range maps {
		if err := writer.WriteMap(m); err != nil {
			log.Printf("failed to write map %d: %v", m.ID, err)
			return subcommands.ExitFailure
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	if err := writer.Finalize(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	log.Printf("imported %d maps", len(maps))
	return subcommands.ExitSuccess
}
