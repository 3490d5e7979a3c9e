// Package api serves stored competitions and scores over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"skatescore/internal"
	"skatescore/internal/logging"
	"skatescore/internal/pipeline"
)

type Server struct {
	store   pipeline.QueryStore
	log     *slog.Logger
	metrics http.Handler
}

// NewServer builds the API. metrics may be nil, in which case /metrics is
// not mounted.
func NewServer(store pipeline.QueryStore, log *slog.Logger, metrics http.Handler) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{store: store, log: log, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleStatus)
	r.Get("/competitions", s.handleCompetitions)
	r.Get("/competitions/{id}", s.handleCompetition)
	r.Get("/competitions/{id}/summary", s.handleSummary)
	r.Get("/competitions/{id}/performances", s.handlePerformances)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompetitions(w http.ResponseWriter, r *http.Request) {
	comps, err := s.store.ListCompetitions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if comps == nil {
		comps = []internal.Competition{}
	}
	writeJSON(w, http.StatusOK, comps)
}

func (s *Server) handleCompetition(w http.ResponseWriter, r *http.Request) {
	id, ok := competitionID(w, r)
	if !ok {
		return
	}
	comp, err := s.store.GetCompetition(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if comp == nil {
		http.Error(w, "competition not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// GET /competitions/{id}/summary?category=Men
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := competitionID(w, r)
	if !ok {
		return
	}
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	perfs, err := s.store.ListPerformances(r.Context(), id, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.Podium(perfs))
}

// GET /competitions/{id}/performances?category=Women
func (s *Server) handlePerformances(w http.ResponseWriter, r *http.Request) {
	id, ok := competitionID(w, r)
	if !ok {
		return
	}
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	details, err := pipeline.LoadPerformanceDetails(r.Context(), s.store, id, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func competitionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid competition id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func categoryParam(w http.ResponseWriter, r *http.Request) (internal.Category, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("category"))
	if raw == "" {
		return "", true
	}
	c, err := internal.ParseCategory(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
