// Package unwrap extracts the list of raw records from API response envelopes
// of unknown shape.
//
// Backends wrap their results in many ways: a bare array, a conventional
// wrapper key, an Elasticsearch hits structure or a GraphQL edges structure.
// Unwrap tries a fixed list of strategies and returns the first list found.
// An unrecognized shape yields an empty list, never an error.
package unwrap

import (
	"sort"
)

// WrapperKeys are checked in order for an array-valued field.
var WrapperKeys = []string{"items", "results", "data", "content", "listings", "records"}

// strategy returns the extracted items and whether it recognized the shape.
type strategy struct {
	name    string
	extract func(v any) ([]any, bool)
}

var strategies = []strategy{
	{"array", fromArray},
	{"wrapper-key", fromWrapperKey},
	{"es-hits", fromHits},
	{"graphql-edges", fromEdges},
	{"any-array", fromAnyArray},
}

// Unwrap returns the items contained in envelope.
func Unwrap(envelope any) []any {
	items, _ := UnwrapWithStrategy(envelope)
	return items
}

// UnwrapWithStrategy is Unwrap that also reports which strategy matched, or
// "" when none did.
func UnwrapWithStrategy(envelope any) ([]any, string) {
	for _, s := range strategies {
		if items, ok := s.extract(envelope); ok {
			return items, s.name
		}
	}
	return []any{}, ""
}

func fromArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

func fromWrapperKey(v any) ([]any, bool) {
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	for _, key := range WrapperKeys {
		if arr, ok := obj[key].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

func fromHits(v any) ([]any, bool) {
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	hitsObj, ok := asObject(obj["hits"])
	if !ok {
		return nil, false
	}
	hits, ok := hitsObj["hits"].([]any)
	if !ok {
		return nil, false
	}

	out := make([]any, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hitSource(hit))
	}
	return out, true
}

func hitSource(hit any) any {
	obj, ok := asObject(hit)
	if !ok {
		return hit
	}
	for _, key := range []string{"_source", "_doc", "fields"} {
		if src, ok := obj[key]; ok && src != nil {
			return src
		}
	}
	return hit
}

func fromEdges(v any) ([]any, bool) {
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}

	edges, ok := graphQLEdges(obj)
	if !ok {
		return nil, false
	}

	out := make([]any, 0, len(edges))
	for _, edge := range edges {
		node := edge
		if e, ok := asObject(edge); ok {
			if n, ok := e["node"]; ok && n != nil {
				node = n
			}
		}
		if node == nil {
			continue
		}
		out = append(out, node)
	}
	return out, true
}

func graphQLEdges(obj map[string]any) ([]any, bool) {
	if data, ok := asObject(obj["data"]); ok {
		if search, ok := asObject(data["search"]); ok {
			if edges, ok := search["edges"].([]any); ok {
				return edges, true
			}
		}
	}
	edges, ok := obj["edges"].([]any)
	return edges, ok
}

// fromAnyArray flattens every top-level array value. Keys are visited in
// sorted order so the result is deterministic.
func fromAnyArray(v any) ([]any, bool) {
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []any{}
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			out = append(out, arr...)
		}
	}
	return out, true
}
