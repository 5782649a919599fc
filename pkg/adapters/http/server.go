// Package http exposes a session.Manager as a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/session"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// Server serves the director API.
type Server struct {
	sessions *session.Manager
	logger   *slog.Logger
	metrics  http.Handler
}

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	ID string `json:"id,omitempty"`
}

// SessionResponse identifies a session.
type SessionResponse struct {
	ID string `json:"id"`
}

// OpeningRequest is the body of POST /sessions/{id}/opening.
type OpeningRequest struct {
	Theme string       `json:"theme"`
	First domain.Label `json:"first,omitempty"`
}

// JudgeRequest is the body of POST /judge.
type JudgeRequest struct {
	Text         string `json:"text"`
	MaxChars     int    `json:"max_chars"`
	MaxSentences int    `json:"max_sentences"`
	Repair       bool   `json:"repair,omitempty"`
}

// JudgeResponse reports the violations of a text and, on request, its repair.
type JudgeResponse struct {
	domain.Judgement
	Repaired string `json:"repaired,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler for the manager.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{sessions: sessions}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.health)
	r.Get("/version", s.version)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post("/judge", s.judge)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.resetSession)
			r.Post("/evaluate", s.evaluate)
			r.Post("/opening", s.opening)
			r.Get("/stats", s.stats)
			r.Get("/state", s.state)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "director",
		"version": strings.TrimSpace(director.Version),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if !s.decode(w, r, &body, true) {
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.sessions.Create(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Reset(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var body director.Request
	if !s.decode(w, r, &body, false) {
		return
	}
	id := chi.URLParam(r, "id")
	d, err := s.sessions.Evaluate(r.Context(), id, body)
	if err != nil {
		if d.Turn == 0 {
			s.fail(w, r, err)
			return
		}
		// The directive is still usable; only the snapshot was lost.
		s.logger.Warn("session snapshot failed", "session_id", id, "err", err)
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) opening(w http.ResponseWriter, r *http.Request) {
	var body OpeningRequest
	if !s.decode(w, r, &body, true) {
		return
	}
	first := body.First
	if first == "" {
		first = domain.LabelA
	}
	if !first.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "first must be A or B"})
		return
	}
	d, err := s.sessions.Opening(r.Context(), chi.URLParam(r, "id"), body.Theme, first)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) judge(w http.ResponseWriter, r *http.Request) {
	var body JudgeRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	resp := JudgeResponse{Judgement: domain.JudgeText(body.Text, body.MaxChars, body.MaxSentences)}
	if body.Repair && !resp.OK {
		resp.Repaired = domain.AutoRepair(body.Text, body.MaxChars)
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v. An empty body is accepted when optional.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
