package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/marketsearch/pkg/live"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/realtime"
	"github.com/rubiojr/marketsearch/pkg/search"
)

type Server struct {
	service  atomic.Pointer[search.Service]
	hub      *realtime.Hub
	debounce atomic.Int64
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewServer creates an API server backed by service. hub may be nil, in
// which case the firehose endpoint is not available.
func NewServer(service *search.Service, hub *realtime.Hub, debounce time.Duration) *Server {
	s := &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.ForService("api"),
	}
	s.Reload(service, debounce)
	return s
}

// Reload swaps the search service used for new requests. Requests and live
// sessions already running keep the previous one.
func (s *Server) Reload(service *search.Service, debounce time.Duration) {
	if debounce <= 0 {
		debounce = live.DefaultDelay
	}
	s.service.Store(service)
	s.debounce.Store(int64(debounce))
}

// Service returns the search service currently answering requests.
func (s *Server) Service() *search.Service {
	return s.service.Load()
}

func (s *Server) debounceDelay() time.Duration {
	return time.Duration(s.debounce.Load())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
