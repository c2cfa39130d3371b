package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rubiojr/marketsearch/pkg/api"
	"github.com/rubiojr/marketsearch/pkg/classify"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/search"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the marketplace",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "module",
				Usage: "Restrict the search to a module. Can be used multiple times",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: search.DefaultLimit,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Show which classification rule picked each module",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("a search query is required")
			}
			modules, err := core.ParseModules(c.StringSlice("module"))
			if err != nil {
				return err
			}

			cfg, err := loadValidConfig(c.String("config"))
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			service, err := newSearchService(cfg, store, nil)
			if err != nil {
				return err
			}

			opts := searchOutputOptions{
				json:    c.Bool("json"),
				explain: c.Bool("explain"),
			}
			params := search.Params{Query: query, Modules: modules, Limit: c.Int("limit")}
			return runSearch(ctx, os.Stdout, service, params, opts)
		},
	}
}

type searchOutputOptions struct {
	json    bool
	explain bool
}

func runSearch(ctx context.Context, w io.Writer, service *search.Service, params search.Params, opts searchOutputOptions) error {
	results, err := service.Search(ctx, params)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	items := api.NewItems(results.Items, service.Registry())
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(api.SearchResponse{
			Query:     results.Query,
			Source:    string(results.Source),
			RequestID: results.RequestID,
			Items:     items,
			Count:     len(items),
		})
	}

	renderResults(w, results, items, opts.explain)
	return nil
}

// renderResults prints items grouped by module in priority order.
func renderResults(w io.Writer, results *search.Results, items []api.Item, explain bool) {
	st := newStyles(w)

	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Results for %q", results.Query)))
	fmt.Fprintln(w, st.meta.Render(fmt.Sprintf("source: %s, %s", results.Source, results.Elapsed.Round(time.Millisecond))))

	if len(items) == 0 {
		fmt.Fprintln(w, st.noData.Render("No results found"))
		return
	}

	groups := make(map[core.Module][]int)
	for i, item := range items {
		groups[item.Module] = append(groups[item.Module], i)
	}
	order := append(append([]core.Module(nil), core.AllModules...), core.NoModule)

	for _, m := range order {
		idx := groups[m]
		if len(idx) == 0 {
			continue
		}
		fmt.Fprintln(w, st.header.Render(fmt.Sprintf("%s (%d)", moduleLabel(m), len(idx))))
		for n, i := range idx {
			item := items[i]
			fmt.Fprintf(w, "%d. %s\n", n+1, st.item.Render(item.Title))
			meta := fmt.Sprintf("   %s · id %s", item.Type, item.ID)
			if explain {
				_, rule := classify.Explain(item.Raw, "")
				if rule == "" {
					rule = "none"
				}
				meta += " · rule " + rule
			}
			fmt.Fprintln(w, st.meta.Render(meta))
			fmt.Fprintln(w, "   "+st.href.Render(item.Href))
		}
	}

	fmt.Fprintln(w, st.summary.Render(fmt.Sprintf("Total: %d results across %d modules", len(items), len(groups))))
}
