package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/route"
	"github.com/urfave/cli/v3"
)

// RouteCommand creates the route command
func RouteCommand() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Resolve the detail route of a raw record",
		ArgsUsage: "JSON|-",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "module",
				Usage: "Module hint added to the record",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Also print the inferred module and the resolution step",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			arg := c.Args().First()
			var in io.Reader = bytes.NewBufferString(arg)
			if arg == "" || arg == "-" {
				in = os.Stdin
			}

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}

			return resolveRoute(os.Stdout, in, registry, c.String("module"), c.Bool("explain"))
		},
	}
}

func parseRecord(r io.Reader) (core.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec core.Record
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no record given")
		}
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return rec, nil
}

func resolveRoute(w io.Writer, in io.Reader, registry *core.Registry, moduleHint string, explain bool) error {
	rec, err := parseRecord(in)
	if err != nil {
		return err
	}
	if moduleHint != "" {
		m, err := core.ParseModule(moduleHint)
		if err != nil {
			return err
		}
		rec = rec.Clone()
		rec[core.ModuleTag] = string(m)
	}

	rt := route.Resolve(rec, registry)
	fmt.Fprintln(w, rt.Href)
	if explain {
		module := string(rt.Module)
		if module == "" {
			module = "unknown"
		}
		fmt.Fprintf(w, "module: %s\nstep: %s\n", module, rt.Strategy)
	}
	return nil
}
