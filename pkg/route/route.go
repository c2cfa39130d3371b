// Package route resolves the navigable detail URL of a raw record.
package route

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rubiojr/marketsearch/pkg/classify"
	"github.com/rubiojr/marketsearch/pkg/core"
)

const (
	Prefix = "/app"
	Home   = Prefix + "/home"
)

// LinkFields hold a ready-made link to the record, checked in order.
var LinkFields = []string{
	"frontendHref", "frontendUrl", "clientUrl", "detailsUrl", "detailUrl",
	"viewUrl", "href", "url", "path", "link", "routerPath",
}

// Strategy names the step that produced a route.
type Strategy string

const (
	StrategyLink     Strategy = "link"
	StrategyTemplate Strategy = "template"
	StrategyIndex    Strategy = "index"
	StrategyHome     Strategy = "home"
)

type Route struct {
	Href     string      `json:"href"`
	Module   core.Module `json:"module,omitempty"`
	Strategy Strategy    `json:"strategy"`
}

var (
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	slashRe  = regexp.MustCompile(`/{2,}`)
)

// BuildHref returns the detail URL for rec. It is never empty.
func BuildHref(rec core.Record, registry *core.Registry) string {
	return Resolve(rec, registry).Href
}

// Resolve is BuildHref that also reports the inferred module and the step
// that produced the URL.
func Resolve(rec core.Record, registry *core.Registry) Route {
	if registry == nil {
		registry = core.GetGlobalRegistry()
	}

	module := classify.Classify(rec, "")
	if link, ok := directLink(rec); ok {
		return Route{Href: NormalizeLink(link), Module: module, Strategy: StrategyLink}
	}

	if module == core.NoModule {
		return Route{Href: Home, Strategy: StrategyHome}
	}

	id, hasID := rec.ID()
	if hasID {
		if d, ok := registry.Get(module); ok {
			if href, ok := d.RouteFor(url.PathEscape(id)); ok {
				return Route{Href: href, Module: module, Strategy: StrategyTemplate}
			}
		}
		return Route{
			Href:     Prefix + "/" + string(module) + "?open=" + url.QueryEscape(id),
			Module:   module,
			Strategy: StrategyIndex,
		}
	}
	return Route{Href: Prefix + "/" + string(module), Module: module, Strategy: StrategyIndex}
}

func directLink(rec core.Record) (string, bool) {
	for _, field := range LinkFields {
		s, ok := rec[field].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// NormalizeLink passes absolute URLs through and maps relative ones under
// the /app prefix with duplicate slashes collapsed.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return Home
	}
	if strings.HasPrefix(link, "//") || schemeRe.MatchString(link) {
		return link
	}

	path, rest := link, ""
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		path, rest = link[:i], link[i:]
	}
	path = slashRe.ReplaceAllString("/"+path, "/")
	if path != Prefix && !strings.HasPrefix(path, Prefix+"/") {
		path = Prefix + path
		if path == Prefix+"/" {
			path = Prefix
		}
	}
	return path + rest
}
