// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the live telemetry of one VE.Direct link over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the read-only telemetry API
type Server struct {
	telemetry *vedirect.Telemetry
	stats     *vedirect.Statistics
	source    string
	log       zerolog.Logger
	router    *chi.Mux
	server    *http.Server
}

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Health is the body of /healthz
type Health struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Source  string `json:"source"`
	Records uint64 `json:"records"`
}

// NewServer creates a server over telemetry. stats may be nil.
func NewServer(telemetry *vedirect.Telemetry, stats *vedirect.Statistics, source string, log zerolog.Logger) *Server {
	s := &Server{
		telemetry: telemetry,
		stats:     stats,
		source:    source,
		log:       log.With().Str("component", "api").Logger(),
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/outputs", s.handleOutputs)
		r.Get("/telemetry", s.handleTelemetry)
		r.Get("/telemetry/{key}", s.handleTelemetryValue)
		r.Get("/statistics", s.handleStatistics)
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting telemetry API")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:  "ok",
		Session: s.telemetry.Session().String(),
		Source:  s.source,
	}
	if s.stats != nil {
		h.Records = s.stats.Snapshot().TotalRecords
	}
	respondJSON(w, http.StatusOK, h)
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	type outputInfo struct {
		Key  string `json:"key"`
		Name string `json:"name"`
		Unit string `json:"unit,omitempty"`
		Kind string `json:"kind"`
	}
	outputs := s.telemetry.Outputs()
	body := make([]outputInfo, 0, len(outputs))
	for _, o := range outputs {
		body = append(body, outputInfo{Key: o.Key(), Name: o.Name(), Unit: o.Unit(), Kind: o.Kind().String()})
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.telemetry.Snapshot())
}

func (s *Server) handleTelemetryValue(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok := s.telemetry.Snapshot().Lookup(key)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown or disabled output: "+key, "not_found")
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "statistics are not collected", "unavailable")
		return
	}
	respondJSON(w, http.StatusOK, s.stats.Snapshot())
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg, code string) {
	respondJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
