// Package api provides the HTTP surface that serves computed records to
// dashboard and exporter collaborators. It is thin wiring over the engine:
// requests select what to compute, responses are the public record types.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"cpi-engine/internal/engine"
	records "cpi-engine/pkg/api"
	enginerrors "cpi-engine/pkg/errors"
)

var startTime = time.Now()

// Config holds server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// Server exposes the engine over HTTP.
type Server struct {
	eng    *engine.Engine
	config *Config
	log    zerolog.Logger
}

// NewServer creates a server around a configured engine.
func NewServer(eng *engine.Engine, config *Config, log zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{eng: eng, config: config, log: log}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/health/ready", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/definitions", s.handleDefinitions)
		r.Post("/compute", s.handleCompute)
		r.Post("/wedge", s.handleWedge)
		r.Get("/qa", s.handleQA)
	})

	return r
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Int("port", s.config.Port).Msg("starting index API server")
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "cpi-engine",
		"uptime":  time.Since(startTime).String(),
	})
}

func (s *Server) handleDefinitions(w http.ResponseWriter, _ *http.Request) {
	defs := s.eng.Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"id":          d.ID,
			"name":        d.Name,
			"geographies": d.Geographies,
			"policy":      d.Policy,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type computeRequest struct {
	Definitions   []string            `json:"definitions"`
	Geographies   []records.Geography `json:"geographies"`
	From          records.Month       `json:"from"`
	To            records.Month       `json:"to"`
	Contributions bool                `json:"contributions"`
	QA            bool                `json:"qa"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := s.eng.Compute(r.Context(), engine.Request{
		Definitions:   req.Definitions,
		Geographies:   req.Geographies,
		From:          req.From,
		To:            req.To,
		Contributions: req.Contributions,
		RunQA:         req.QA,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	// Decompositions are engine-internal detail; the flattened contribution
	// records already carry the published numbers.
	res.Decompositions = nil
	writeJSON(w, http.StatusOK, res)
}

type wedgeRequest struct {
	Headline  string            `json:"headline"`
	Core      string            `json:"core"`
	Geography records.Geography `json:"geography"`
	Month     records.Month     `json:"month"`
}

func (s *Server) handleWedge(w http.ResponseWriter, r *http.Request) {
	var req wedgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rep, err := s.eng.Wedge(r.Context(), req.Headline, req.Core, req.Geography, req.Month)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleQA(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Validate())
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	if ee, ok := err.(*enginerrors.EngineError); ok && ee.Severity == enginerrors.SeverityFatal {
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
