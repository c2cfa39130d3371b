// Package existence verifies that search results still exist on the backend
// before they are shown.
//
// Only explicit 404/410 responses remove a result. Every other failure keeps
// it: transient infrastructure problems must never hide content.
package existence

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/normalize"
	"golang.org/x/sync/errgroup"
)

// Verdict is the outcome of probing one result.
type Verdict int

const (
	// Unverifiable means no template or no id was available.
	Unverifiable Verdict = iota
	// Confirmed means the probe got a 2xx response.
	Confirmed
	// Unreachable means the probe failed for a reason other than 404/410.
	Unreachable
	// Gone means the backend answered 404 or 410.
	Gone
)

func (v Verdict) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Unreachable:
		return "unreachable"
	case Gone:
		return "gone"
	default:
		return "unverifiable"
	}
}

// Keep reports whether a result with this verdict stays in the output.
func (v Verdict) Keep() bool {
	return v != Gone
}

// Prober issues HEAD requests. *backend.Client satisfies it.
type Prober interface {
	Head(ctx context.Context, path string) (*backend.Response, error)
}

const DefaultConcurrency = 16

type Filter struct {
	prober      Prober
	registry    *core.Registry
	concurrency int
	logger      *log.Logger
}

// NewFilter creates a filter probing through p with the templates found in
// registry. concurrency bounds the number of probes in flight.
func NewFilter(p Prober, registry *core.Registry, concurrency int) *Filter {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Filter{
		prober:      p,
		registry:    registry,
		concurrency: concurrency,
		logger:      log.ForService("existence"),
	}
}

// probeURL returns the existence URL for r, if one can be built. A record
// tagged with the module endpoint it was listed from is probed there, even
// when classification picked another module.
func (f *Filter) probeURL(r normalize.Result) (string, bool) {
	m := r.Raw.Module()
	if m == core.NoModule {
		m = r.Module
	}
	if m == core.NoModule {
		return "", false
	}
	d, ok := f.registry.Get(m)
	if !ok {
		return "", false
	}
	id, ok := r.Raw.ID()
	if !ok {
		return "", false
	}
	return d.ExistsURL(url.PathEscape(id))
}

// Check probes a single result.
func (f *Filter) Check(ctx context.Context, r normalize.Result) Verdict {
	path, ok := f.probeURL(r)
	if !ok {
		return Unverifiable
	}

	_, err := f.prober.Head(ctx, path)
	switch {
	case err == nil:
		return Confirmed
	case backend.IsStatus(err, http.StatusNotFound, http.StatusGone):
		f.logger.Debugf("dropping %s: %v", r.Key(), err)
		return Gone
	default:
		f.logger.Debugf("keeping %s after failed probe: %v", r.Key(), err)
		return Unreachable
	}
}

// Verdicts probes every result concurrently. The returned slice is aligned
// with results.
func (f *Filter) Verdicts(ctx context.Context, results []normalize.Result) []Verdict {
	verdicts := make([]Verdict, len(results))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, r := range results {
		g.Go(func() error {
			verdicts[i] = f.Check(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	return verdicts
}

// Apply returns the results that are confirmed or assumed to exist, in their
// original order.
func (f *Filter) Apply(ctx context.Context, results []normalize.Result) []normalize.Result {
	if len(results) == 0 {
		return results
	}

	verdicts := f.Verdicts(ctx, results)
	kept := make([]normalize.Result, 0, len(results))
	dropped := 0
	for i, r := range results {
		if verdicts[i].Keep() {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		f.logger.Infof("dropped %d of %d results confirmed gone", dropped, len(results))
	}
	return kept
}
