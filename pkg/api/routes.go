package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API routes with method-specific routing
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/search/live", s.HandleLiveSearch)
	mux.HandleFunc("POST /api/route", s.HandleRoute)
	mux.HandleFunc("GET /api/modules", s.HandleModules)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("DELETE /api/cache", s.HandleClearCache)
	mux.HandleFunc("GET /api/firehose/ws", s.HandleFirehose)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
