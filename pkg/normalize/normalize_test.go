package normalize

import (
	"testing"

	"github.com/rubiojr/marketsearch/pkg/core"
)

func TestNormalizeTitleHeuristicRecord(t *testing.T) {
	results := Normalize([]core.Record{{"title": "Plumbing repair needed"}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.ID != "x0" {
		t.Errorf("ID: expected x0, got %q", r.ID)
	}
	if r.Title != "Plumbing repair needed" {
		t.Errorf("Title: got %q", r.Title)
	}
	if r.Type != DefaultType {
		t.Errorf("Type: expected %q, got %q", DefaultType, r.Type)
	}
	if r.Module != core.Services {
		t.Errorf("Module: expected services, got %q", r.Module)
	}
}

func TestNormalizeFields(t *testing.T) {
	tests := []struct {
		name   string
		record core.Record
		index  int
		want   Result
	}{
		{
			name:   "numeric id and headline",
			record: core.Record{"_id": float64(7), "headline": "Guitar", "kind": "music", "price": float64(30)},
			want:   Result{ID: "7", Title: "Guitar", Type: "music", Module: core.Ads},
		},
		{
			name:   "defaults",
			record: core.Record{},
			index:  4,
			want:   Result{ID: "x4", Title: DefaultTitle, Type: DefaultType, Module: core.NoModule},
		},
		{
			name:   "home swap id",
			record: core.Record{"home_swap_id": "hs-1", "name": "Lisbon flat", core.ModuleTag: "homeswap"},
			want:   Result{ID: "hs-1", Title: "Lisbon flat", Type: DefaultType, Module: core.HomeSwap},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := One(tt.record, tt.index)
			if got.ID != tt.want.ID || got.Title != tt.want.Title || got.Type != tt.want.Type || got.Module != tt.want.Module {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNormalizeKeepsRawReference(t *testing.T) {
	rec := core.Record{"id": "1"}
	r := One(rec, 0)
	r.Raw["touched"] = true
	if rec["touched"] != true {
		t.Error("expected Raw to reference the original record")
	}
}

func TestDedupe(t *testing.T) {
	results := []Result{
		{ID: "1", Module: core.Rentals, Title: "first"},
		{ID: "1", Module: core.Ads},
		{ID: "1", Module: core.Rentals, Title: "second"},
		{ID: "2", Module: core.Rentals},
	}

	out := Dedupe(results)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].Title != "first" {
		t.Errorf("expected first occurrence to win, got %q", out[0].Title)
	}
}
