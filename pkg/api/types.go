package api

import (
	"time"

	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/normalize"
	"github.com/rubiojr/marketsearch/pkg/route"
)

// Item is a search result with its resolved detail route.
type Item struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Type   string      `json:"type"`
	Module core.Module `json:"module"`
	Href   string      `json:"href"`
	Raw    core.Record `json:"raw"`
}

func NewItems(results []normalize.Result, registry *core.Registry) []Item {
	items := make([]Item, len(results))
	for i, r := range results {
		items[i] = Item{
			ID:     r.ID,
			Title:  r.Title,
			Type:   r.Type,
			Module: r.Module,
			Href:   route.BuildHref(r.Raw, registry),
			Raw:    r.Raw,
		}
	}
	return items
}

type SearchResponse struct {
	Query     string `json:"query"`
	Source    string `json:"source"`
	RequestID string `json:"request_id"`
	Items     []Item `json:"items"`
	Count     int    `json:"count"`
}

type RouteResponse struct {
	Href     string      `json:"href"`
	Module   core.Module `json:"module,omitempty"`
	Strategy string      `json:"strategy"`
}

type ModulesResponse struct {
	Modules []core.ModuleDescriptor `json:"modules"`
	Count   int                     `json:"count"`
}

type StatsResponse struct {
	Cache     cache.Stats `json:"cache"`
	Listeners int         `json:"listeners"`
	Version   string      `json:"version"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// LiveRequest is sent by live search clients on every input change.
type LiveRequest struct {
	Q string `json:"q"`
}

// LiveMessage is sent to live search clients. Type is "init", "results" or
// "error".
type LiveMessage struct {
	Type     string `json:"type"`
	Session  string `json:"session,omitempty"`
	Debounce string `json:"debounce,omitempty"`
	Q        string `json:"q"`
	Seq      uint64 `json:"seq"`
	Source   string `json:"source,omitempty"`
	Items    []Item `json:"items"`
	Count    int    `json:"count"`
	Error    string `json:"error,omitempty"`
}
