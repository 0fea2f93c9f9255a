package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/go-minimaps/cache"
	"github.com/google/subcommands"
)

type cacheCmd struct {
	settings
	list bool
}

func (c *cacheCmd) Name() string     { return "cache" }
func (c *cacheCmd) Synopsis() string { return "show cached files of a build" }
func (c *cacheCmd) Usage() string {
	return "minimaps cache [-build <hash>] [-cache <dir>] [-l]\n"
}
func (c *cacheCmd) SetFlags(f *flag.FlagSet) {
	c.settings.SetFlags(f)
	f.BoolVar(&c.list, "l", false, "List every cached file")
}

func (c *cacheCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := c.load(f)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	store := cache.NewStore(cfg.CacheDir)
	count, total := 0, int64(0)
	err = store.VisitEntries(cfg.Build, func(key cache.Key, size int64) error {
		count++
		total += size
		if c.list {
			fmt.Printf("%s\t%s\n", key.Name, humanize.Bytes(uint64(size)))
		}
		return nil
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%s: %d files, %s\n", cfg.Build, count, humanize.Bytes(uint64(total)))
	return subcommands.ExitSuccess
}
