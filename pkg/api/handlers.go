package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rubiojr/marketsearch/pkg/core"
	"github.com/rubiojr/marketsearch/pkg/route"
	"github.com/rubiojr/marketsearch/pkg/search"
	"github.com/rubiojr/marketsearch/pkg/version"
)

const maxRouteBody = 1 << 20

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	// API requires a query parameter
	if params.Query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	service := s.Service()
	results, err := service.Search(r.Context(), params)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	items := NewItems(results.Items, service.Registry())
	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     results.Query,
		Source:    string(results.Source),
		RequestID: results.RequestID,
		Items:     items,
		Count:     len(items),
	})
}

func (s *Server) HandleRoute(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRouteBody))
	dec.UseNumber()

	var rec core.Record
	if err := dec.Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid record", err.Error())
		return
	}

	rt := route.Resolve(rec, s.Service().Registry())
	s.writeJSON(w, http.StatusOK, RouteResponse{
		Href:     rt.Href,
		Module:   rt.Module,
		Strategy: string(rt.Strategy),
	})
}

func (s *Server) HandleModules(w http.ResponseWriter, r *http.Request) {
	descriptors := s.Service().Registry().Descriptors()
	s.writeJSON(w, http.StatusOK, ModulesResponse{
		Modules: descriptors,
		Count:   len(descriptors),
	})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	listeners := 0
	if s.hub != nil {
		listeners = s.hub.Size()
	}
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Cache:     s.Service().Cache().Stats(),
		Listeners: listeners,
		Version:   version.Version,
	})
}

func (s *Server) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.Service().Cache().Clear(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to clear cache", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
