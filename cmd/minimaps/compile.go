package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/go-minimaps/catalog"
	"github.com/eak1mov/go-minimaps/compile"
	"github.com/eak1mov/go-minimaps/config"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type compileCmd struct {
	settings
	maps string
}

func (c *compileCmd) Name() string     { return "compile" }
func (c *compileCmd) Synopsis() string { return "compile minimap images of catalog maps" }
func (c *compileCmd) Usage() string {
	return "minimaps compile [-config <path>] [-catalog <path>] [-o <dir>] [-j <workers>] [-maps <id,...>]\n"
}
func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	c.settings.SetFlags(f)
	defaults := config.Default()
	f.StringVar(&c.flags.OutDir, "o", defaults.OutDir, "Output directory")
	f.StringVar(&c.flags.Catalog, "catalog", defaults.Catalog, "Map catalog (sqlite or csv)")
	f.StringVar(&c.flags.CatalogFormat, "catalog-format", "", "Catalog format (sqlite, csv)")
	f.IntVar(&c.flags.Workers, "j", 0, "Maps compiled concurrently (0: one per CPU)")
	f.StringVar(&c.maps, "maps", "", "Comma-separated map IDs to compile (default: all)")
}

func (c *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := c.load(f)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "o":
			cfg.OutDir = c.flags.OutDir
		case "catalog":
			cfg.Catalog = c.flags.Catalog
		case "catalog-format":
			cfg.CatalogFormat = c.flags.CatalogFormat
		case "j":
			cfg.Workers = c.flags.Workers
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	maps, err := catalog.Load(cfg.Catalog, cfg.CatalogFormat, slog.Default())
	if err != nil {
		log.Println("failed to load catalog:", err)
		return subcommands.ExitFailure
	}
	jobs, err := selectJobs(maps, c.maps)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	client, err := newClient(cfg)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	compiler := compile.NewCompiler(client, cfg.OutDir, compile.WithLogger(slog.Default()))
	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("compiling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	scheduler := compile.NewScheduler(compiler,
		compile.WithWorkers(cfg.Workers),
		compile.WithSchedulerLogger(slog.Default()),
		compile.WithResultFunc(func(r compile.Result) {
			if r.Status == compile.StatusDone {
				slog.Debug("minimaps: map written", "path", r.Path, "size", humanize.Bytes(uint64(r.Size)))
			}
			bar.Add(1)
		}),
	)
	log.Printf("compiling %d maps of build %s with %d workers", len(jobs), cfg.Build, scheduler.Workers())

	results := scheduler.Run(ctx, jobs)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	summary := compile.Summarize(results)
	log.Printf("done: %d, skipped: %d, failed: %d, tiles placed: %d, tiles omitted: %d",
		summary.Done, summary.Skipped, summary.Failed, summary.Placed, summary.Omitted)
	if ctx.Err() != nil {
		log.Println("interrupted")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// selectJobs turns catalog maps into jobs, keeping only the maps listed in
// filter when it is not empty.
func selectJobs(maps []catalog.Map, filter string) ([]compile.Job, error) {
	var wanted map[uint32]bool
	if filter != "" {
		wanted = make(map[uint32]bool)
		for _, field := range strings.Split(filter, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid map ID %q: %w", field, err)
			}
			wanted[uint32(id)] = true
		}
	}

	jobs := make([]compile.Job, 0, len(maps))
	for _, m := range maps {
		if wanted != nil && !wanted[m.ID] {
			continue
		}
		jobs = append(jobs, compile.Job{MapID: m.ID, Name: m.Name, LayoutID: m.LayoutID})
	}
	return jobs, nil
}
