package cmd

import (
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/marketsearch/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// styles are bound to one output writer so colours are only emitted on
// terminals.
type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	item    lipgloss.Style
	meta    lipgloss.Style
	href    lipgloss.Style
	summary lipgloss.Style
	noData  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0),
		item: r.NewStyle().
			Bold(true),
		meta: r.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
		href: r.NewStyle().
			Foreground(lipgloss.Color("33")),
		summary: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Margin(1, 0, 0, 0),
		noData: r.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

var titleCaser = cases.Title(language.English)

// moduleLabel returns a display label for m.
func moduleLabel(m core.Module) string {
	if m == core.NoModule {
		return "Other"
	}
	d := core.DefaultDescriptor(m)
	return titleCaser.String(d.Label)
}

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n uint64) string {
	switch {
	case n < 1000:
		return strconv.FormatUint(n, 10)
	case n < 1000000:
		return strconv.FormatFloat(float64(n)/1000, 'f', 1, 64) + "K"
	default:
		return strconv.FormatFloat(float64(n)/1000000, 'f', 1, 64) + "M"
	}
}
