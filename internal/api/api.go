// Package api provides the HTTP host for DialogKit.
//
// It exposes a turn endpoint that runs one conversational turn against a
// control tree, plus debug endpoints for session state. The host owns session
// ids and request plumbing; all dialogue behavior lives in the session and
// controls packages.
package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/DialogKit/internal/session"
	"github.com/BTreeMap/DialogKit/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a functional option for configuring the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server hosts the turn and session-state endpoints.
type Server struct {
	addr    string
	manager *session.Manager
	store   store.SnapshotStore
}

// NewServer creates an API server around a session manager and its store.
func NewServer(manager *session.Manager, st store.SnapshotStore, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	slog.Debug("Creating API server", "addr", addr)
	return &Server{addr: addr, manager: manager, store: st}
}

// Handler returns the server's HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/turn", s.turnHandler)
	mux.HandleFunc("/state", s.stateHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("DialogKit API running", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}
