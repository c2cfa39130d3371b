// Package fanout queries every module's list endpoint in parallel. It is the
// client-side fallback used when centralized search is unavailable.
package fanout

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/unwrap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

const DefaultPageSize = 50

// TextFields are concatenated for the client-side term match.
var TextFields = []string{
	"title", "name", "headline", "label", "description", "summary", "about",
	"details", "body", "city", "town", "location", "category",
}

// Lister issues GET requests. *backend.Client satisfies it.
type Lister interface {
	Get(ctx context.Context, path string, params url.Values) (*backend.Response, error)
}

type Fetcher struct {
	lister   Lister
	registry *core.Registry
	pageSize int
	logger   *log.Logger
}

func NewFetcher(l Lister, registry *core.Registry, pageSize int) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		lister:   l,
		registry: registry,
		pageSize: pageSize,
		logger:   log.ForService("fanout"),
	}
}

// FetchModule returns the records of one module tagged with core.ModuleTag.
// The module's list paths are tried in order and the first non-empty answer
// wins. Failures yield an empty list: a module with nothing to offer is not
// an error.
func (f *Fetcher) FetchModule(ctx context.Context, m core.Module) []core.Record {
	d, ok := f.registry.Get(m)
	if !ok {
		return nil
	}

	params := url.Values{
		"page": {"0"},
		"size": {strconv.Itoa(f.pageSize)},
	}
	for _, path := range d.ListPaths {
		if ctx.Err() != nil {
			return nil
		}
		resp, err := f.lister.Get(ctx, path, params)
		if err != nil {
			f.logger.Debugf("%s: %s failed: %v", m, path, err)
			continue
		}
		records := core.Records(unwrap.Unwrap(resp.Data))
		if len(records) == 0 {
			f.logger.Debugf("%s: %s returned no records", m, path)
			continue
		}
		for _, rec := range records {
			rec[core.ModuleTag] = string(m)
		}
		return records
	}
	return nil
}

// Fetch queries modules concurrently (every registered module when modules
// is empty) and pools the results in module order. A non-blank term keeps
// only records whose text fields contain it, ignoring case.
func (f *Fetcher) Fetch(ctx context.Context, term string, modules []core.Module) ([]core.Record, error) {
	if len(modules) == 0 {
		modules = f.registry.Modules()
	}

	perModule := make([][]core.Record, len(modules))
	var g errgroup.Group
	for i, m := range modules {
		g.Go(func() error {
			perModule[i] = f.FetchModule(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pooled []core.Record
	for i, records := range perModule {
		f.logger.Debugf("%s contributed %d records", modules[i], len(records))
		pooled = append(pooled, records...)
	}

	filtered := FilterByTerm(pooled, term)
	f.logger.Debugf("fan-out over %d modules: %d records, %d matching %q", len(modules), len(pooled), len(filtered), term)
	return filtered, nil
}

// FilterByTerm keeps the records whose TextFields contain term. A blank term
// keeps everything.
func FilterByTerm(records []core.Record, term string) []core.Record {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(term))
	if needle == "" {
		return records
	}

	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if strings.Contains(folder.String(Text(rec)), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Text joins the non-empty TextFields of rec with single spaces.
func Text(rec core.Record) string {
	parts := make([]string, 0, len(TextFields))
	for _, field := range TextFields {
		if s := strings.TrimSpace(rec.String(field)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
