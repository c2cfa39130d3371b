package unwrap

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decoding %s: %v", s, err)
	}
	return v
}

func ids(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, "?")
			continue
		}
		id, _ := obj["id"].(string)
		out = append(out, id)
	}
	return out
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     []string
		strategy string
	}{
		{"bare array", `[{"id":"a"},{"id":"b"}]`, []string{"a", "b"}, "array"},
		{"items key", `{"items":[{"id":"a"}],"total":1}`, []string{"a"}, "wrapper-key"},
		{"key priority", `{"records":[{"id":"r"}],"results":[{"id":"x"}]}`, []string{"x"}, "wrapper-key"},
		{"spring page content", `{"content":[{"id":"c"}],"totalPages":3}`, []string{"c"}, "wrapper-key"},
		{"es hits", `{"hits":{"total":2,"hits":[{"_id":"1","_source":{"id":"s"}},{"_id":"2","fields":{"id":"f"}}]}}`, []string{"s", "f"}, "es-hits"},
		{"es hit without source", `{"hits":{"hits":[{"id":"h"}]}}`, []string{"h"}, "es-hits"},
		{"graphql data.search.edges", `{"data":{"search":{"edges":[{"node":{"id":"n"}},null]}}}`, []string{"n"}, "graphql-edges"},
		{"graphql edges without node", `{"edges":[{"id":"e"}]}`, []string{"e"}, "graphql-edges"},
		{"any array values", `{"rentals":[{"id":"r"}],"ads":[{"id":"a"}],"count":2}`, []string{"a", "r"}, "any-array"},
		{"object without arrays", `{"count":0}`, []string{}, "any-array"},
		{"scalar", `"nope"`, []string{}, ""},
		{"null", `null`, []string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, strategy := UnwrapWithStrategy(decode(t, tt.body))
			if strategy != tt.strategy {
				t.Errorf("strategy: expected %q, got %q", tt.strategy, strategy)
			}
			got := ids(items)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("item %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestUnwrapIsIdempotent(t *testing.T) {
	bodies := []string{
		`[{"id":"a"}]`,
		`{"results":[{"id":"a"}]}`,
		`{"hits":{"hits":[{"_source":{"id":"a"}}]}}`,
		`{"edges":[{"node":{"id":"a"}}]}`,
		`{"x":[{"id":"a"}]}`,
	}

	for _, body := range bodies {
		envelope := decode(t, body)
		first := Unwrap(envelope)
		second := Unwrap(envelope)
		if len(first) != len(second) {
			t.Fatalf("%s: lengths differ %d vs %d", body, len(first), len(second))
		}
		for i := range first {
			a := first[i].(map[string]any)
			b := second[i].(map[string]any)
			if a["id"] != b["id"] {
				t.Errorf("%s: item %d differs", body, i)
			}
		}
	}
}

func TestUnwrapNeverReturnsNil(t *testing.T) {
	if items := Unwrap(nil); items == nil {
		t.Error("expected empty slice, got nil")
	}
}
