// Package realtime provides an in-process publish/subscribe hub that fans out
// completed search events to listeners such as WebSocket sessions.
//
// Delivery is best effort: a listener whose buffer is full misses the event,
// searches are never slowed down by slow consumers. Nothing is persisted or
// replayed.
package realtime

import (
	"sync"
	"time"

	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/search"
)

// SearchEvent summarizes one completed search.
type SearchEvent struct {
	RequestID string         `json:"request_id"`
	Query     string         `json:"query"`
	Source    string         `json:"source"`
	Count     int            `json:"count"`
	Modules   map[string]int `json:"modules"`
	ElapsedMS int64          `json:"elapsed_ms"`
	At        time.Time      `json:"at"`
}

// InternalEvent is the envelope sent to listeners. Only Type == "search" is
// produced for now.
type InternalEvent struct {
	Type   string      `json:"type"`
	Search SearchEvent `json:"search"`
}

// NewSearchEvent builds the event for res, counting items per module.
func NewSearchEvent(res *search.Results) SearchEvent {
	modules := make(map[string]int)
	for _, item := range res.Items {
		key := string(item.Module)
		if item.Module == core.NoModule {
			key = "unknown"
		}
		modules[key]++
	}
	return SearchEvent{
		RequestID: res.RequestID,
		Query:     res.Query,
		Source:    string(res.Source),
		Count:     len(res.Items),
		Modules:   modules,
		ElapsedMS: res.Elapsed.Milliseconds(),
		At:        time.Now().UTC(),
	}
}

// Hub is an in-memory fan-out dispatcher. Each listener receives events on
// its own buffered channel. The hub is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan InternalEvent
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size. If
// bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan InternalEvent),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister(id) when done.
func (h *Hub) Register() (uint64, <-chan InternalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan InternalEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener with room in its buffer.
func (h *Hub) Broadcast(ev SearchEvent) {
	ie := InternalEvent{Type: "search", Search: ev}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ie:
		default:
			// Drop for slow listener.
		}
	}
}

// Publish is a search.Options.OnResults hook.
func (h *Hub) Publish(res *search.Results) {
	h.Broadcast(NewSearchEvent(res))
}

// Size returns the current number of listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
