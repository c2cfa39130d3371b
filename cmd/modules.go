package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/urfave/cli/v3"
)

// ModulesCommand creates the modules command
func ModulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "modules",
		Usage: "List the enabled modules and their endpoints",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}
			renderModules(os.Stdout, registry)
			return nil
		},
	}
}

func renderModules(w io.Writer, registry *core.Registry) {
	r := lipgloss.NewRenderer(w)
	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("MODULE", "LIST PATHS", "EXISTS", "ROUTE")

	for _, d := range registry.Descriptors() {
		t.Row(moduleLabel(d.Key), strings.Join(d.ListPaths, ", "), orDash(d.ExistsPath), orDash(d.Route))
	}
	fmt.Fprintln(w, t.Render())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
