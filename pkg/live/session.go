package live

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/search"
)

// Searcher runs one search. *search.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, p search.Params) (*search.Results, error)
}

// Update is delivered for the latest query once its search completes. A
// blank query produces an Update with nil Results.
type Update struct {
	Query   string
	Seq     uint64
	Results *search.Results
	Err     error
}

// Session debounces queries from one client.
type Session struct {
	ID string

	ctx       context.Context
	cancel    context.CancelFunc
	searcher  Searcher
	debouncer *Debouncer
	modules   []core.Module
	limit     int
	deliver   func(Update)
	deliverMu sync.Mutex
	wg        sync.WaitGroup
	closeMu   sync.Mutex
	closed    bool
	logger    *log.Logger
}

type SessionOptions struct {
	Delay   time.Duration
	Modules []core.Module
	Limit   int
}

// NewSession creates a session whose searches run under ctx. deliver is
// never called concurrently with itself.
func NewSession(ctx context.Context, s Searcher, opts SessionOptions, deliver func(Update)) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ID:        uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		searcher:  s,
		debouncer: NewDebouncer(opts.Delay),
		modules:   opts.Modules,
		limit:     opts.Limit,
		deliver:   deliver,
		logger:    log.ForService("live"),
	}
}

// Submit records new input. The search starts after the debounce delay
// unless more input arrives first.
func (s *Session) Submit(query string) uint64 {
	query = strings.TrimSpace(query)
	if query == "" {
		gen := s.debouncer.Invalidate()
		s.send(gen, Update{Seq: gen})
		return gen
	}

	return s.debouncer.Trigger(func(gen uint64) {
		s.closeMu.Lock()
		if s.closed {
			s.closeMu.Unlock()
			return
		}
		s.wg.Add(1)
		s.closeMu.Unlock()

		defer s.wg.Done()
		s.run(gen, query)
	})
}

func (s *Session) run(gen uint64, query string) {
	if !s.debouncer.Current(gen) || s.ctx.Err() != nil {
		return
	}

	res, err := s.searcher.Search(s.ctx, search.Params{Query: query, Modules: s.modules, Limit: s.limit})
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		return
	}
	s.send(gen, Update{Query: query, Seq: gen, Results: res, Err: err})
}

func (s *Session) send(gen uint64, u Update) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.debouncer.Current(gen) {
		s.logger.Debugf("session %s: dropping stale results for %q (seq %d)", s.ID, u.Query, gen)
		return
	}
	s.deliver(u)
}

// Close stops pending searches and waits for running ones to return.
// Nothing is delivered after Close returns.
func (s *Session) Close() {
	s.debouncer.Invalidate()
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()
	s.cancel()
	s.wg.Wait()
}
