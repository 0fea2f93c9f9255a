package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
)

type fetchCmd struct {
	settings
	id         uint
	name       string
	outputPath string
}

func (c *fetchCmd) Name() string     { return "fetch" }
func (c *fetchCmd) Synopsis() string { return "fetch a single file through the cache" }
func (c *fetchCmd) Usage() string {
	return "minimaps fetch (-id <fileDataID> | -name <path>) [-o <path>]\n"
}
func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	c.settings.SetFlags(f)
	f.UintVar(&c.id, "id", 0, "File data ID")
	f.StringVar(&c.name, "name", "", "File path inside the build")
	f.StringVar(&c.outputPath, "o", "", "Output file path (default: stdout)")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if (c.id == 0) == (c.name == "") {
		log.Println("exactly one of -id and -name is required")
		return subcommands.ExitUsageError
	}
	if uint64(c.id) > math.MaxUint32 {
		log.Printf("file data ID %d out of range", c.id)
		return subcommands.ExitUsageError
	}

	cfg, err := c.load(f)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	client, err := newClient(cfg)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	var data []byte
	if c.id != 0 {
		data, err = client.FileByID(ctx, uint32(c.id), "")
	} else {
		data, err = client.FileByName(ctx, c.name)
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if c.outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.outputPath, data, 0644); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	log.Printf("wrote %s (%s)", c.outputPath, humanize.Bytes(uint64(len(data))))
	return subcommands.ExitSuccess
}
