// Package api exposes the matcher, conversation context and training mode
// over HTTP, plus a WebSocket stream for continuous recognition.
//
// Routes:
//
//	POST   /v1/sessions                         start a voice session
//	GET    /v1/sessions                         list live sessions
//	DELETE /v1/sessions/{id}                    end a session
//	POST   /v1/sessions/{id}/match              match one utterance
//	GET    /v1/sessions/{id}/stream             WebSocket: {"utterance"} in, result out
//	GET    /v1/sessions/{id}/context            read context values
//	PUT    /v1/sessions/{id}/context            set one context value
//	DELETE /v1/sessions/{id}/context            clear values and history
//	GET    /v1/sessions/{id}/history?count=n    recent turns
//	GET    /v1/commands                         registered commands
//	POST   /v1/training/{intent}/utterances     train an utterance
//	DELETE /v1/training/{intent}/utterances     remove one (?utterance=...)
//	POST   /v1/training/test                    test recognition
//	GET    /v1/training/stats[?intent=]         accuracy statistics
//	GET    /v1/training/data[?intent=]          training corpus
//	GET    /v1/training/{intent}/recommendations
//	GET    /v1/training/usage                   usage analysis
//	GET    /v1/training/export                  export document
//	POST   /v1/training/import                  import document
//	DELETE /v1/training                         clear all training
//	DELETE /v1/training/{intent}                clear one intent
//	GET    /healthz, /readyz, /metrics
//
// Errors are rendered as {"success": false, "error": "..."}.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/health"
	"github.com/MrWong99/voxcmd/internal/observe"
	"github.com/MrWong99/voxcmd/internal/session"
	"github.com/MrWong99/voxcmd/internal/training"
)

// defaultMaxBodyBytes bounds request bodies. Training exports are the
// largest payloads.
const defaultMaxBodyBytes = 8 << 20

var errBadRequest = errors.New("api: bad request")

// Config holds the dependencies of a [Server].
type Config struct {
	Sessions *session.Manager
	Trainer  *training.Trainer
	Registry command.Registry

	// Recognizer returns the recognizer used by training tests that do not
	// name a session. It is called once per test so that tests never share
	// conversation context.
	Recognizer func() training.Recognizer

	// Health serves /healthz and /readyz when set.
	Health *health.Handler

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// Metrics is passed to the HTTP middleware. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MaxBodyBytes bounds request bodies. Default: 8 MiB.
	MaxBodyBytes int64
}

// Server is the HTTP surface of voxcmd.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// New builds a [Server] and registers all routes.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the root handler wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.cfg.Metrics)(s.mux)
}

func (s *Server) routes() {
	m := s.mux

	m.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	m.HandleFunc("GET /v1/sessions", s.handleListSessions)
	m.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	m.HandleFunc("POST /v1/sessions/{id}/match", s.handleMatch)
	m.HandleFunc("GET /v1/sessions/{id}/stream", s.handleStream)
	m.HandleFunc("GET /v1/sessions/{id}/context", s.handleGetContext)
	m.HandleFunc("PUT /v1/sessions/{id}/context", s.handleSetContext)
	m.HandleFunc("DELETE /v1/sessions/{id}/context", s.handleClearContext)
	m.HandleFunc("GET /v1/sessions/{id}/history", s.handleHistory)

	m.HandleFunc("GET /v1/commands", s.handleCommands)

	m.HandleFunc("POST /v1/training/{intent}/utterances", s.handleTrain)
	m.HandleFunc("DELETE /v1/training/{intent}/utterances", s.handleRemoveUtterance)
	m.HandleFunc("POST /v1/training/test", s.handleTest)
	m.HandleFunc("GET /v1/training/stats", s.handleStats)
	m.HandleFunc("GET /v1/training/data", s.handleTrainingData)
	m.HandleFunc("GET /v1/training/{intent}/recommendations", s.handleRecommendations)
	m.HandleFunc("GET /v1/training/usage", s.handleUsage)
	m.HandleFunc("GET /v1/training/export", s.handleExport)
	m.HandleFunc("POST /v1/training/import", s.handleImport)
	m.HandleFunc("DELETE /v1/training", s.handleClearTraining)
	m.HandleFunc("DELETE /v1/training/{intent}", s.handleClearTraining)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(m)
	}
	if s.cfg.MetricsHandler != nil {
		m.Handle("GET /metrics", s.cfg.MetricsHandler)
	}
}

func (s *Server) handleCommands(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, http.StatusOK, s.cfg.Registry.All())
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	default:
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
}
