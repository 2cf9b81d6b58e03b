// Package api serves the engine's query surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/model"
	"github.com/propscope/propscope/internal/resilience"
	"github.com/propscope/propscope/internal/search"
	"github.com/propscope/propscope/internal/transit"
	"github.com/propscope/propscope/internal/zone"
	"github.com/propscope/propscope/pkg/onemap"
)

// Server wires the subsystems into an HTTP handler.
type Server struct {
	searcher *search.Searcher
	transit  *transit.Service
	locator  *zone.Locator
	resolver onemap.Client
	pool     db.Pool
}

// NewServer creates a Server. resolver may be nil, disabling the
// location-resolution endpoint; pool may be nil, disabling ad-hoc
// queries.
func NewServer(searcher *search.Searcher, ts *transit.Service, locator *zone.Locator, resolver onemap.Client, pool db.Pool) *Server {
	return &Server{
		searcher: searcher,
		transit:  ts,
		locator:  locator,
		resolver: resolver,
		pool:     pool,
	}
}

// Handler builds the chi router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search/properties", s.handleSearch)
		r.Post("/search/multi", s.handleMultiSearch)
		r.Post("/transit/nearby", s.handleTransitNearby)
		r.Get("/zones/locate", s.handleZoneLocate)
		r.Get("/zones/landuse", s.handleLandUse)
		r.Get("/resolve", s.handleResolve)
		r.Post("/query", s.handleAdhocQuery)
	})
	return r
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		id, _ := r.Context().Value(requestIDKey).(string)
		zap.L().Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", id),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery, err))
		return
	}
	out, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMultiSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Centers    []model.SearchCenter `json:"centers"`
		Conditions []search.Condition   `json:"conditions,omitempty"`
		Limit      int                  `json:"limit"`
		WithTrends bool                 `json:"with_trends,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery, err))
		return
	}
	groups, err := s.searcher.MultiCenter(r.Context(), req.Centers, req.Conditions, req.Limit, req.WithTrends)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleTransitNearby(w http.ResponseWriter, r *http.Request) {
	var req transit.NearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery, err))
		return
	}
	stations, err := s.transit.Nearby(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

func (s *Server) handleZoneLocate(w http.ResponseWriter, r *http.Request) {
	x, y, err := coordParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	z, err := s.locator.Locate(r.Context(), x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	if z == nil {
		writeError(w, resilience.NewError(resilience.KindNotFound,
			errors.New("no zone contains the point")))
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (s *Server) handleLandUse(w http.ResponseWriter, r *http.Request) {
	x, y, err := coordParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	radius, err := floatParam(r, "radius")
	if err != nil {
		writeError(w, err)
		return
	}
	zones, err := s.locator.Within(r.Context(), x, y, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zone.ComputeMix(zones))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery,
			errors.New("location resolution is not configured")))
		return
	}
	loc, err := s.resolver.Resolve(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleAdhocQuery(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery,
			errors.New("ad-hoc queries are not configured")))
		return
	}
	var req struct {
		SQL string `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, resilience.NewError(resilience.KindInvalidQuery, err))
		return
	}
	rows, err := search.AdhocQuery(r.Context(), s.pool, req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

func coordParams(r *http.Request) (float64, float64, error) {
	x, err := floatParam(r, "x")
	if err != nil {
		return 0, 0, err
	}
	y, err := floatParam(r, "y")
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, resilience.NewError(resilience.KindInvalidQuery,
			errors.New("missing query parameter "+name))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, resilience.NewError(resilience.KindInvalidQuery,
			errors.New("invalid query parameter "+name))
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch resilience.ClassOf(err) {
	case resilience.KindInvalidQuery:
		status = http.StatusBadRequest
	case resilience.KindNotFound:
		status = http.StatusNotFound
	case resilience.KindRateLimited:
		status = http.StatusTooManyRequests
	case resilience.KindAuthExpired, resilience.KindServerError:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
