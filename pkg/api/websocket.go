package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/marketsearch/pkg/live"
	"github.com/rubiojr/marketsearch/pkg/search"
)

const writeTimeout = 10 * time.Second

// wsWriter serializes writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

// HandleLiveSearch upgrades to a WebSocket carrying a debounced search
// session. Clients send LiveRequest frames; results are sent only for the
// latest query.
func (s *Server) HandleLiveSearch(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("live search upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	service := s.Service()
	registry := service.Registry()
	delay := s.debounceDelay()
	out := &wsWriter{conn: conn}

	sess := live.NewSession(r.Context(), service, live.SessionOptions{
		Delay:   delay,
		Modules: params.Modules,
		Limit:   params.Limit,
	}, func(u live.Update) {
		msg := LiveMessage{Type: "results", Q: u.Query, Seq: u.Seq, Items: []Item{}}
		switch {
		case u.Err != nil:
			msg.Type = "error"
			msg.Error = "Search failed"
		case u.Results != nil:
			msg.Source = string(u.Results.Source)
			msg.Items = NewItems(u.Results.Items, registry)
		}
		msg.Count = len(msg.Items)
		if err := out.send(msg); err != nil {
			s.logger.Debugf("live search write failed: %v", err)
		}
	})
	defer sess.Close()

	s.logger.Debugf("live session %s opened", sess.ID)
	if err := out.send(LiveMessage{Type: "init", Session: sess.ID, Debounce: delay.String(), Items: []Item{}}); err != nil {
		return
	}

	for {
		var req LiveRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnf("live session %s: %v", sess.ID, err)
			}
			s.logger.Debugf("live session %s closed", sess.ID)
			return
		}
		sess.Submit(req.Q)
	}
}

// HandleFirehose streams an event for every completed search.
func (s *Server) HandleFirehose(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusNotFound, "Not available", "The search firehose is disabled")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("firehose upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	out := &wsWriter{conn: conn}
	if err := out.send(map[string]any{"type": "init", "listeners": s.hub.Size()}); err != nil {
		return
	}

	// The reader only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := out.send(ev); err != nil {
				return
			}
		}
	}
}
