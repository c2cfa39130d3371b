// Package search is the tolerant search orchestrator shared by the API, the
// live session and the CLI.
//
// A search walks cache → primary → fallback → cache write. Every sub-fetch
// failure degrades to fewer results; the only errors returned are a blank
// query and a cancelled context.
package search

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/existence"
	"github.com/rubiojr/marketsearch/pkg/fanout"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/normalize"
	"github.com/rubiojr/marketsearch/pkg/unwrap"
)

const (
	DefaultSearchPath = "/api/search"
	DefaultLimit      = 30
)

var ErrEmptyQuery = errors.New("empty search query")

// Source tells where a result set came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceEmpty    Source = "empty"
)

// Params describes one search request.
type Params struct {
	// Query is the free-text search term. It is trimmed before use.
	Query string

	// Modules restricts the search to a subset of modules. Empty means all
	// registered modules.
	Modules []core.Module

	// Limit caps the number of returned items. Zero means no cap. The cache
	// always holds the full result set.
	Limit int
}

// Results is the outcome of a search.
type Results struct {
	Query     string             `json:"query"`
	Source    Source             `json:"source"`
	Items     []normalize.Result `json:"items"`
	RequestID string             `json:"request_id"`
	Elapsed   time.Duration      `json:"-"`
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	SearchPath       string
	PrimaryLimit     int
	PageSize         int
	ProbeConcurrency int
	// OnResults, when set, is called with every completed search.
	OnResults func(*Results)
}

// Service runs searches against one backend.
type Service struct {
	backend    backend.Doer
	registry   *core.Registry
	cache      cache.Store
	fetcher    *fanout.Fetcher
	filter     *existence.Filter
	searchPath string
	limit      int
	onResults  func(*Results)
	logger     *log.Logger
}

// NewService wires the pipeline components. A nil store gets a private
// in-memory cache.
func NewService(b backend.Doer, registry *core.Registry, store cache.Store, opts Options) *Service {
	if registry == nil {
		registry = core.GetGlobalRegistry()
	}
	if store == nil {
		store = cache.NewMemory(cache.Options{})
	}
	if opts.SearchPath == "" {
		opts.SearchPath = DefaultSearchPath
	}
	if opts.PrimaryLimit <= 0 {
		opts.PrimaryLimit = DefaultLimit
	}
	return &Service{
		backend:    b,
		registry:   registry,
		cache:      store,
		fetcher:    fanout.NewFetcher(b, registry, opts.PageSize),
		filter:     existence.NewFilter(b, registry, opts.ProbeConcurrency),
		searchPath: opts.SearchPath,
		limit:      opts.PrimaryLimit,
		onResults:  opts.OnResults,
		logger:     log.ForService("search"),
	}
}

// Cache returns the store backing the service.
func (s *Service) Cache() cache.Store {
	return s.cache
}

// Registry returns the module registry used by the service.
func (s *Service) Registry() *core.Registry {
	return s.registry
}

// Search runs the orchestrated search for p.
func (s *Service) Search(ctx context.Context, p Params) (*Results, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Results{Query: query, RequestID: uuid.NewString()}

	modules := p.Modules
	var subset []string
	if len(modules) > 0 {
		for _, m := range modules {
			subset = append(subset, string(m))
		}
	} else {
		modules = s.registry.Modules()
	}
	key := cache.Key(query, subset...)

	if items, ok := s.cache.Get(key); ok {
		s.logger.Debugf("[%s] cache hit for %q (%d items)", res.RequestID, key, len(items))
		res.Source = SourceCache
		res.Items = truncate(items, p.Limit)
		res.Elapsed = time.Since(start)
		s.notify(res)
		return res, nil
	}

	items, err := s.primary(ctx, query, modules, len(subset) > 0)
	if err != nil {
		s.logger.Warnf("[%s] primary search failed, falling back: %v", res.RequestID, err)
	}
	res.Source = SourcePrimary

	if len(items) == 0 {
		items = s.fallback(ctx, query, modules, res.RequestID)
		res.Source = SourceFallback
	}

	if err := ctx.Err(); err != nil {
		// A cancelled search must not leave an empty entry behind.
		return nil, err
	}

	if len(items) == 0 {
		items = []normalize.Result{}
		res.Source = SourceEmpty
	}
	s.cache.Set(key, items)

	res.Items = truncate(items, p.Limit)
	res.Elapsed = time.Since(start)
	s.logger.Infof("[%s] %q: %d items from %s in %s", res.RequestID, query, len(items), res.Source, res.Elapsed.Round(time.Millisecond))
	s.notify(res)
	return res, nil
}

func (s *Service) notify(res *Results) {
	if s.onResults != nil {
		s.onResults(res)
	}
}

// primary calls the cross-module search endpoint.
func (s *Service) primary(ctx context.Context, query string, modules []core.Module, restrict bool) ([]normalize.Result, error) {
	types := make([]string, len(modules))
	for i, m := range modules {
		types[i] = string(m)
	}
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(s.limit)},
		"types": {strings.Join(types, ",")},
	}

	resp, err := s.backend.Get(ctx, s.searchPath, params)
	if err != nil {
		return nil, err
	}

	results := normalize.Dedupe(normalize.Normalize(core.Records(unwrap.Unwrap(resp.Data))))
	if restrict {
		results = onlyModules(results, modules)
	}
	return s.filter.Apply(ctx, results), nil
}

// fallback fans out over the module list endpoints. Its failures are
// absorbed: the caller sees an empty slice.
func (s *Service) fallback(ctx context.Context, query string, modules []core.Module, reqID string) []normalize.Result {
	records, err := s.fetcher.Fetch(ctx, query, modules)
	if err != nil {
		s.logger.Warnf("[%s] fallback search failed: %v", reqID, err)
		return nil
	}
	results := normalize.Dedupe(normalize.Normalize(records))
	return s.filter.Apply(ctx, results)
}

func onlyModules(results []normalize.Result, modules []core.Module) []normalize.Result {
	allowed := make(map[core.Module]bool, len(modules))
	for _, m := range modules {
		allowed[m] = true
	}
	out := make([]normalize.Result, 0, len(results))
	for _, r := range results {
		if allowed[r.Module] {
			out = append(out, r)
		}
	}
	return out
}

func truncate(items []normalize.Result, limit int) []normalize.Result {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// ParseSearchParams converts query string parameters into Params.
//
// Supported parameters:
//   - q: search query
//   - module: module filter, repeatable or comma separated
//   - limit: maximum number of items (positive integer, defaults to 30)
func ParseSearchParams(queryParams map[string][]string) (Params, error) {
	params := Params{
		Limit: DefaultLimit,
	}

	if q := queryParams["q"]; len(q) > 0 {
		params.Query = q[0]
	}

	if names := queryParams["module"]; len(names) > 0 {
		modules, err := core.ParseModules(names)
		if err != nil {
			return params, err
		}
		params.Modules = modules
	}

	if limitStr := queryParams["limit"]; len(limitStr) > 0 && limitStr[0] != "" {
		if parsed, err := strconv.Atoi(limitStr[0]); err == nil && parsed > 0 {
			params.Limit = parsed
		}
	}

	return params, nil
}
