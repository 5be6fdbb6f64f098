// Package web serves the browser front-end of the boardroom: a single-page
// chat with the four advisors, a JSON API, a websocket chat channel and a
// live log view.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/logging"
	"github.com/leandrotocalini/boardroom/internal/prompt"
)

//go:embed static/index.html
var static embed.FS

// LogSource is the recorded log stream shown on the status page.
// *logging.Handler satisfies it.
type LogSource interface {
	Entries() []logging.Entry
	Subscribe() chan logging.Entry
	Unsubscribe(ch chan logging.Entry)
}

// StatusFunc reports extra key/value pairs for /api/status, such as the
// connection state of messenger backends.
type StatusFunc func() map[string]string

// Server holds the HTTP handlers.
type Server struct {
	svc      *advisor.Service
	logs     LogSource
	status   []StatusFunc
	provider string
	logger   *slog.Logger
	started  time.Time
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for the server.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithLogSource enables /api/logs and /api/logs/stream.
func WithLogSource(src LogSource) Option {
	return func(s *Server) {
		s.logs = src
	}
}

// WithStatus adds fields to /api/status. It may be given more than once.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) {
		s.status = append(s.status, fn)
	}
}

// WithProvider names the LLM backend in /api/status.
func WithProvider(name string) Option {
	return func(s *Server) {
		s.provider = name
	}
}

// New creates a Server backed by svc.
func New(svc *advisor.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/idea", s.handleGetIdea)
	mux.HandleFunc("PUT /api/idea", s.handlePutIdea)
	mux.HandleFunc("DELETE /api/session", s.handleReset)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/agents/{agent}/messages", s.handleHistory)
	mux.HandleFunc("POST /api/agents/{agent}/messages", s.handleAsk)
	mux.HandleFunc("POST /api/board", s.handleBoard)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/logs/stream", s.handleLogsStream)
	return mux
}

// HTTPServer returns an http.Server for addr. Shutdown is left to the
// caller.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sessionID(w, r)
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrNoIdea):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrEmptyIdea), errors.Is(err, prompt.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, advisor.ErrResetUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
