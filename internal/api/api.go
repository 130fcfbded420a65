// Package api serves the admin REST API used by the dashboard: question
// catalog management, content editing, the user directory, submissions,
// and the auto-message config.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/remontlab/leadbot/internal/broadcast"
	"github.com/remontlab/leadbot/internal/store"
)

// CommandPublisher re-publishes the bot command menu after the command
// registry changes.
type CommandPublisher interface {
	SetupCommands(ctx context.Context) error
}

// Opts holds configuration for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Store is the backing store. Required.
	Store store.Store
	// Broadcaster drives manual auto-message sends and rescheduling.
	// Optional.
	Broadcaster *broadcast.Broadcaster
	// Publisher refreshes the bot command menu on command changes.
	// Optional.
	Publisher CommandPublisher
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithStore sets the backing store.
func WithStore(st store.Store) Option {
	return func(o *Opts) {
		o.Store = st
	}
}

// WithBroadcaster sets the auto-message broadcaster.
func WithBroadcaster(b *broadcast.Broadcaster) Option {
	return func(o *Opts) {
		o.Broadcaster = b
	}
}

// WithPublisher sets the command menu publisher.
func WithPublisher(p CommandPublisher) Option {
	return func(o *Opts) {
		o.Publisher = p
	}
}

// Server is the admin API server.
type Server struct {
	store       store.Store
	broadcaster *broadcast.Broadcaster
	publisher   CommandPublisher
	httpServer  *http.Server
}

// NewServer builds the server and its routes.
func NewServer(opts ...Option) (*Server, error) {
	o := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Store == nil {
		return nil, errors.New("store is required")
	}
	s := &Server{store: o.Store, broadcaster: o.Broadcaster, publisher: o.Publisher}
	s.httpServer = &http.Server{
		Addr:         o.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /questions/{form}", s.handleListQuestions)
	mux.HandleFunc("POST /questions/{form}", s.handleCreateQuestion)
	mux.HandleFunc("PATCH /questions/{id}", s.handleUpdateQuestion)
	mux.HandleFunc("DELETE /questions/{id}", s.handleDeleteQuestion)

	mux.HandleFunc("GET /summary/{form}", s.handleGetSummary)
	mux.HandleFunc("PUT /summary/{form}", s.handlePutSummary)

	mux.HandleFunc("GET /commands", s.handleListCommands)
	mux.HandleFunc("POST /commands", s.handleUpsertCommand)
	mux.HandleFunc("DELETE /commands/{id}", s.handleDeleteCommand)

	mux.HandleFunc("GET /content/start", s.handleGetStartContent)
	mux.HandleFunc("PUT /content/start", s.handlePutStartContent)
	mux.HandleFunc("GET /content/topic", s.handleGetTopicContent)
	mux.HandleFunc("PUT /content/topic", s.handlePutTopicContent)
	mux.HandleFunc("GET /content/dizayn", s.handleGetDizaynContent)
	mux.HandleFunc("PUT /content/dizayn", s.handlePutDizaynContent)
	mux.HandleFunc("GET /content/proekt-price", s.handleGetProektPrice)
	mux.HandleFunc("PUT /content/proekt-price", s.handlePutProektPrice)

	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.HandleFunc("GET /submissions", s.handleListSubmissions)

	mux.HandleFunc("GET /portfolio", s.handleListPortfolio)
	mux.HandleFunc("POST /portfolio", s.handleCreatePortfolio)
	mux.HandleFunc("DELETE /portfolio/{id}", s.handleDeletePortfolio)

	mux.HandleFunc("GET /auto-message/config", s.handleGetAutoMessageConfig)
	mux.HandleFunc("PUT /auto-message/config", s.handlePutAutoMessageConfig)
	mux.HandleFunc("POST /auto-message/send", s.handleSendAutoMessages)

	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
