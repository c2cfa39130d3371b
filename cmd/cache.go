package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/urfave/cli/v3"
)

// CacheCommand creates the cache command
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the persistent search cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withPersistentCache(c.String("config"), func(store cache.Store) error {
						printCacheStats(os.Stdout, store.Stats())
						return nil
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every cached search",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withPersistentCache(c.String("config"), func(store cache.Store) error {
						n := store.Stats().Entries
						if err := store.Clear(); err != nil {
							return err
						}
						fmt.Printf("Removed %d cached searches\n", n)
						return nil
					})
				},
			},
		},
	}
}

func withPersistentCache(configPath string, fn func(cache.Store) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.CacheDir == "" {
		fmt.Println("cache_dir is not set; searches are only cached in memory")
		return nil
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printCacheStats(w io.Writer, stats cache.Stats) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Search cache"))
	fmt.Fprintf(w, "Backend:  %s\n", stats.Backend)
	fmt.Fprintf(w, "TTL:      %s\n", stats.TTL)
	fmt.Fprintf(w, "Entries:  %s\n", formatNumber(uint64(stats.Entries)))
	fmt.Fprintf(w, "Hits:     %s\n", formatNumber(stats.Hits))
	fmt.Fprintf(w, "Misses:   %s\n", formatNumber(stats.Misses))
	fmt.Fprintf(w, "Writes:   %s\n", formatNumber(stats.Writes))
	fmt.Fprintf(w, "Expired:  %s\n", formatNumber(stats.Expired))
}
