// Package live runs search-as-you-type sessions.
//
// A session waits for a pause in input before searching and delivers only
// the results of the most recent query. Superseded searches are not aborted:
// they finish (and populate the cache) but their results are dropped.
package live

import (
	"sync"
	"time"
)

const DefaultDelay = 180 * time.Millisecond

// Debouncer runs a function once input has been quiet for a delay. Every
// Trigger starts a new generation; callers use Current to tell whether a
// result still belongs to the latest input.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Trigger replaces any pending call with fn and returns the new generation.
func (d *Debouncer) Trigger(fn func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { fn(gen) })
	return gen
}

// Invalidate drops any pending call and marks in-flight work as stale.
func (d *Debouncer) Invalidate() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return d.gen
}

// Current reports whether gen is the latest generation.
func (d *Debouncer) Current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
