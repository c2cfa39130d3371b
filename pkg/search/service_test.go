package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/core"
)

// fakeBackend answers GET requests from a path → body map (500 for the search
// endpoint when primaryFails, 404 otherwise) and HEAD probes with 200 unless
// the path is listed in gone.
type fakeBackend struct {
	mu           sync.Mutex
	bodies       map[string]string
	gone         map[string]bool
	primaryFails bool
	requests     []string
	searchQuery  url.Values
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.URL.Path == DefaultSearchPath {
		f.searchQuery = r.URL.Query()
	}
	f.mu.Unlock()

	if r.Method == http.MethodHead {
		if f.gone[r.URL.Path] {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	if r.URL.Path == DefaultSearchPath && f.primaryFails {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, ok := f.bodies[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeBackend) lastSearch() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchQuery
}

func newService(t *testing.T, f *fakeBackend, store cache.Store) *Service {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return NewService(client, core.GetGlobalRegistry(), store, Options{})
}

func TestSearchFallsBackWhenPrimaryFails(t *testing.T) {
	f := &fakeBackend{
		primaryFails: true,
		bodies: map[string]string{
			"/api/rentals": `{"content":[
				{"id":1,"title":"Sunny flat London"},
				{"id":2,"title":"Studio","location":"Flat London Road"},
				{"id":3,"title":"Room","location":"Leeds"}]}`,
			"/api/events": `[{"id":"e1","title":"London marathon"}]`,
		},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "flat london"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourceFallback {
		t.Errorf("expected fallback source, got %s", res.Source)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(res.Items), res.Items)
	}
	for i, want := range []string{"1", "2"} {
		if res.Items[i].ID != want || res.Items[i].Module != core.Rentals {
			t.Errorf("item %d: expected rentals:%s, got %s", i, want, res.Items[i].Key())
		}
	}
}

func TestSearchPrimaryWithExistenceFilter(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `{"items":[
				{"id":"1","type":"event","title":"Spring Festival"},
				{"id":"2","type":"rental","title":"Old flat"},
				{"id":"1","type":"event","title":"Spring Festival (dup)"}]}`,
		},
		gone: map[string]bool{"/api/rentals/2": true},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "spring"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourcePrimary {
		t.Errorf("expected primary source, got %s", res.Source)
	}
	if len(res.Items) != 1 || res.Items[0].Key() != "events:1" {
		t.Fatalf("unexpected items %+v", res.Items)
	}
	if res.Items[0].Title != "Spring Festival" {
		t.Errorf("dedupe should keep the first occurrence, got %q", res.Items[0].Title)
	}

	q := f.lastSearch()
	if q.Get("q") != "spring" || q.Get("limit") != "30" {
		t.Errorf("unexpected primary params %v", q)
	}
	if q.Get("types") != "rentals,homeswap,services,events,travel,ads" {
		t.Errorf("unexpected types %q", q.Get("types"))
	}
}

func TestSearchFallsBackWhenPrimaryEmpty(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `{"items":[]}`,
			"/ads":            `{"data":[{"id":9,"title":"Vintage lamp"}]}`,
		},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "lamp"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourceFallback || len(res.Items) != 1 || res.Items[0].Key() != "ads:9" {
		t.Fatalf("unexpected result %s %+v", res.Source, res.Items)
	}
}

func TestSearchTotalFailureIsEmptyAndCached(t *testing.T) {
	f := &fakeBackend{primaryFails: true, bodies: map[string]string{}}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "nothing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourceEmpty {
		t.Errorf("expected empty source, got %s", res.Source)
	}
	if res.Items == nil || len(res.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %#v", res.Items)
	}

	before := f.count()
	res, err = s.Search(context.Background(), Params{Query: "  NOTHING "})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("expected cached empty result, got %s", res.Source)
	}
	if f.count() != before {
		t.Errorf("cache hit must not reach the backend")
	}
}

func TestSearchCacheTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := cache.NewMemory(cache.Options{Now: func() time.Time { return now }})
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `[{"id":1,"__module":"travel","title":"Lisbon trip"}]`,
		},
	}
	s := newService(t, f, store)

	if _, err := s.Search(context.Background(), Params{Query: "Lisbon"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	afterFirst := f.count()

	now = now.Add(time.Minute)
	res, err := s.Search(context.Background(), Params{Query: "lisbon"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourceCache || f.count() != afterFirst {
		t.Errorf("expected cache hit at T+1min, source=%s requests=%d", res.Source, f.count()-afterFirst)
	}

	now = now.Add(time.Minute + time.Millisecond)
	res, err = s.Search(context.Background(), Params{Query: "lisbon"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Source != SourcePrimary || f.count() == afterFirst {
		t.Errorf("expected fresh fetch at T+2min+1ms, source=%s", res.Source)
	}
}

func TestSearchModuleSubset(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `[
				{"id":1,"type":"event","title":"Jazz night"},
				{"id":2,"type":"service","title":"Jazz lessons"}]`,
		},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "jazz", Modules: []core.Module{core.Events}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Module != core.Events {
		t.Fatalf("expected only events, got %+v", res.Items)
	}
	if f.lastSearch().Get("types") != "events" {
		t.Errorf("expected types=events, got %q", f.lastSearch().Get("types"))
	}
}

func TestSearchLimitTruncates(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `[{"id":1,"type":"ad"},{"id":2,"type":"ad"},{"id":3,"type":"ad"}]`,
		},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "ad", Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(res.Items))
	}
	cached, ok := s.Cache().Get(cache.Key("ad"))
	if !ok || len(cached) != 3 {
		t.Errorf("cache should hold the full set, got %d (hit=%v)", len(cached), ok)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	f := &fakeBackend{bodies: map[string]string{}}
	s := newService(t, f, nil)

	if _, err := s.Search(context.Background(), Params{Query: "   "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, Params{Query: "flat"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if f.count() != 0 {
		t.Errorf("rejected searches must not reach the backend, got %d requests", f.count())
	}
	if s.Cache().Stats().Entries != 0 {
		t.Errorf("rejected searches must not be cached")
	}
}

func TestParseSearchParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected Params
		hasError bool
	}{
		{
			name:     "basic query",
			query:    "q=flat&limit=5",
			expected: Params{Query: "flat", Limit: 5},
		},
		{
			name:  "module filters",
			query: "q=x&module=events&module=rentals,home-swap",
			expected: Params{
				Query:   "x",
				Modules: []core.Module{core.Events, core.Rentals, core.HomeSwap},
				Limit:   30,
			},
		},
		{
			name:     "defaults when no params",
			query:    "",
			expected: Params{Limit: 30},
		},
		{
			name:     "invalid limit defaults to 30",
			query:    "q=test&limit=invalid",
			expected: Params{Query: "test", Limit: 30},
		},
		{
			name:     "unknown module returns error",
			query:    "q=test&module=boats",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("failed to parse query: %v", err)
			}

			result, err := ParseSearchParams(values)
			if tt.hasError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, result)
			}
		})
	}
}

func TestSearchNotifiesObserver(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `[{"id":1,"type":"tour","title":"Alps"}]`,
		},
	}
	srv := httptest.NewServer(f)
	defer srv.Close()
	client, err := backend.NewClient(backend.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	var seen []Source
	s := NewService(client, nil, nil, Options{OnResults: func(r *Results) { seen = append(seen, r.Source) }})

	for i := 0; i < 2; i++ {
		if _, err := s.Search(context.Background(), Params{Query: "alps"}); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if !reflect.DeepEqual(seen, []Source{SourcePrimary, SourceCache}) {
		t.Errorf("unexpected notifications %v", seen)
	}
}

func (f *fakeBackend) saw(request string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == request {
			return true
		}
	}
	return false
}

func TestSearchProbesTheModuleARecordWasListedFrom(t *testing.T) {
	// "House cleaning" classifies as rentals, but the record came from the
	// services endpoint and must be verified there.
	f := &fakeBackend{
		primaryFails: true,
		bodies: map[string]string{
			"/api/services": `[{"id":7,"title":"Deep clean","category":"House cleaning"}]`,
		},
		gone: map[string]bool{"/api/rentals/7": true},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "cleaning"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "7" {
		t.Fatalf("expected the services record to survive, got %+v", res.Items)
	}
	if !f.saw("HEAD /api/services/7") {
		t.Error("expected existence check against /api/services/7")
	}
	if f.saw("HEAD /api/rentals/7") {
		t.Error("record should not be checked against the rentals endpoint")
	}
}

func TestSearchKeepsLargeNumericIDs(t *testing.T) {
	f := &fakeBackend{
		bodies: map[string]string{
			DefaultSearchPath: `{"content":[{"id":9007199254740993,"title":"Vintage chair","price":10}]}`,
		},
	}
	s := newService(t, f, nil)

	res, err := s.Search(context.Background(), Params{Query: "chair"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "9007199254740993" {
		t.Fatalf("expected exact identifier, got %+v", res.Items)
	}
	if !f.saw("HEAD /api/ads/9007199254740993") {
		t.Error("expected existence check with the exact identifier")
	}
}
