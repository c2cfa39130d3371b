package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/core"
)

// newBackend serves the given bodies by path; other paths answer 404.
func newBackend(t *testing.T, bodies map[string]string) (*backend.Client, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		if r.URL.Query().Get("page") != "0" || r.URL.Query().Get("size") == "" {
			t.Errorf("missing paging params on %s: %q", r.URL.Path, r.URL.RawQuery)
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return client, &hits
}

func TestFetchModuleFirstVariantWins(t *testing.T) {
	client, hits := newBackend(t, map[string]string{
		"/api/rentals": `{"content":[{"id":1,"title":"Flat"}]}`,
		"/rentals":     `[{"id":99}]`,
	})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	records := f.FetchModule(context.Background(), core.Rentals)
	if len(records) != 1 || records[0].String("id") != "1" {
		t.Fatalf("unexpected records %v", records)
	}
	if records[0][core.ModuleTag] != "rentals" {
		t.Errorf("expected module tag, got %v", records[0][core.ModuleTag])
	}
	if len(*hits) != 1 {
		t.Errorf("second variant should not be queried, hits=%v", *hits)
	}
}

func TestFetchModuleFallsBackToSecondVariant(t *testing.T) {
	client, _ := newBackend(t, map[string]string{
		"/api/events": `{"items":[]}`,
		"/events":     `{"results":[{"id":"e1"}]}`,
	})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	records := f.FetchModule(context.Background(), core.Events)
	if len(records) != 1 || records[0].String("id") != "e1" {
		t.Fatalf("unexpected records %v", records)
	}
}

func TestFetchModuleBothVariantsFail(t *testing.T) {
	client, hits := newBackend(t, map[string]string{})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	if records := f.FetchModule(context.Background(), core.Travel); len(records) != 0 {
		t.Fatalf("expected no records, got %v", records)
	}
	if len(*hits) != 2 {
		t.Errorf("expected both variants tried, hits=%v", *hits)
	}
}

func TestFetchPoolsAllModulesAndFilters(t *testing.T) {
	client, hits := newBackend(t, map[string]string{
		"/api/rentals": `[{"id":1,"title":"Bright flat London Bridge"},{"id":2,"title":"Room","location":"Leeds"},{"id":3,"title":"Cosy FLAT LONDON fields"}]`,
		"/ads":         `{"data":[{"id":4,"title":"Sofa","description":"pick up near my flat london"}]}`,
		"/api/events":  `{"items":[{"id":5,"title":"Meetup"}]}`,
	})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	records, err := f.Fetch(context.Background(), "flat london", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.String(core.ModuleTag)+":"+r.String("id"))
	}
	want := []string{"rentals:1", "rentals:3", "ads:4"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	paths := append([]string(nil), (*hits)...)
	sort.Strings(paths)
	if len(paths) < len(core.AllModules) {
		t.Errorf("expected every module queried, got %v", paths)
	}
}

func TestFetchSubsetOfModules(t *testing.T) {
	client, hits := newBackend(t, map[string]string{
		"/api/services": `[{"id":1,"title":"Tutor"}]`,
	})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	records, err := f.Fetch(context.Background(), "", []core.Module{core.Services})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	for _, p := range *hits {
		if p != "/api/services" {
			t.Errorf("unexpected request to %s", p)
		}
	}
}

func TestFilterByTerm(t *testing.T) {
	records := []core.Record{
		{"title": "Straße café", "city": "Berlin"},
		{"name": "Garden", "details": json.Number("12")},
		{"summary": "Quiet street"},
	}

	tests := []struct {
		term string
		want int
	}{
		{"", 3},
		{"  ", 3},
		{"STRASSE", 1},
		{"café berlin", 1},
		{"garden 12", 1},
		{"street", 1},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := FilterByTerm(records, tt.term); len(got) != tt.want {
			t.Errorf("term %q: expected %d records, got %d", tt.term, tt.want, len(got))
		}
	}
}

func TestFetchCancelledContext(t *testing.T) {
	client, _ := newBackend(t, map[string]string{})
	f := NewFetcher(client, core.GetGlobalRegistry(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "x", nil); err == nil {
		t.Error("expected context error")
	}
}
