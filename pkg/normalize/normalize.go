// Package normalize maps raw backend records onto the uniform search result
// shape used by the rest of the pipeline.
package normalize

import (
	"fmt"

	"github.com/rubiojr/marketsearch/pkg/classify"
	"github.com/rubiojr/marketsearch/pkg/core"
)

const (
	DefaultTitle = "Untitled"
	DefaultType  = "item"
)

var (
	titleFields = []string{"title", "name", "headline", "label"}
	typeFields  = []string{"type", "category", "kind", "collection", "domain", "categoryName"}
)

// Result is a normalized search hit. Raw references the original record,
// it is not a copy.
type Result struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Type   string      `json:"type"`
	Module core.Module `json:"module"`
	Raw    core.Record `json:"raw"`
}

// Key identifies a result within one response.
func (r Result) Key() string {
	return string(r.Module) + ":" + r.ID
}

// Normalize converts records into results. Records without an identifier get
// the positional placeholder "x{index}".
func Normalize(records []core.Record) []Result {
	results := make([]Result, 0, len(records))
	for i, rec := range records {
		results = append(results, One(rec, i))
	}
	return results
}

// One normalizes the record found at position index.
func One(rec core.Record, index int) Result {
	id, ok := rec.ID()
	if !ok {
		id = fmt.Sprintf("x%d", index)
	}
	title, ok := rec.FirstString(titleFields...)
	if !ok {
		title = DefaultTitle
	}
	typ, ok := rec.FirstString(typeFields...)
	if !ok {
		typ = DefaultType
	}
	return Result{
		ID:     id,
		Title:  title,
		Type:   typ,
		Module: classify.Classify(rec, ""),
		Raw:    rec,
	}
}

// Dedupe drops results whose module:id key was already seen, keeping the
// first occurrence.
func Dedupe(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
