package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Marketplace backend URL written to the new configuration",
			},
			&cli.BoolFlag{
				Name:  "persistent-cache",
				Usage: "Enable the on-disk search cache in the default cache directory",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts := initOptions{
				baseURL:         c.String("base-url"),
				persistentCache: c.Bool("persistent-cache"),
				force:           c.Bool("force"),
			}
			return initConfig(os.Stdout, c.String("config"), opts)
		},
	}
}

type initOptions struct {
	baseURL         string
	persistentCache bool
	force           bool
}

// initConfig initializes the configuration file
func initConfig(w io.Writer, configPath string, opts initOptions) error {
	if _, err := os.Stat(configPath); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()
	cfg.BaseURL = opts.baseURL
	if opts.persistentCache {
		dir, err := config.GetDefaultCacheDir()
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		cfg.CacheDir = dir
	}
	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(w, "Configuration initialized at %s\n", configPath)
	if cfg.CacheDir != "" {
		fmt.Fprintf(w, "Search cache stored in %s\n", cfg.CacheDir)
	}
	return nil
}
