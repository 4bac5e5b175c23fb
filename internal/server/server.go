// Package server assembles the gateway's services and owns the HTTP server lifecycle.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/api"
	domainauth "github.com/matiasleandrokruk/aiweb/internal/domain/auth"
	"github.com/matiasleandrokruk/aiweb/internal/domain/chat"
	"github.com/matiasleandrokruk/aiweb/internal/domain/knowledge"
	"github.com/matiasleandrokruk/aiweb/internal/infra/config"
	"github.com/matiasleandrokruk/aiweb/internal/infra/eventbus"
	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
	"github.com/matiasleandrokruk/aiweb/internal/infra/logger"
	"github.com/matiasleandrokruk/aiweb/internal/infra/metrics"
	"github.com/matiasleandrokruk/aiweb/internal/mcpserver"
	"github.com/matiasleandrokruk/aiweb/internal/version"
)

// Config holds HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// WriteTimeout bounds the whole response. Zero disables it, which streamed
	// answers and upload polling need.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8000,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

// ConfigFrom returns DefaultConfig with the listener taken from app.
func ConfigFrom(app config.Config) Config {
	c := DefaultConfig()
	c.Host = app.HTTPHost
	c.Port = app.HTTPPort
	return c
}

// Option customises NewServer.
type Option func(*options)

type options struct {
	factory llm.Factory
	metrics *metrics.Metrics
}

// WithProviderFactory replaces the openai-go provider (tests use a stub).
func WithProviderFactory(f llm.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithMetrics shares an existing metrics registry instead of creating one.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Server wraps the HTTP server, database and event bus.
type Server struct {
	config Config
	db     *sql.DB
	bus    *eventbus.Bus
	auth   domainauth.AuthService
	log    zerolog.Logger
	http   *http.Server
}

// NewServer wires provider routing, domain services and routes on top of db.
// app is the immutable configuration snapshot.
func NewServer(db *sql.DB, cfg Config, app config.Config, log zerolog.Logger, opts ...Option) *Server {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	bus := eventbus.New()
	router := llm.NewRouter(app.LLMSettings(), o.factory)
	selected := router.Selected()
	log.Info().
		Str("provider", string(selected.Kind())).
		Str("model", selected.Model()).
		Bool("retrieval", app.VectorStoreID != "").
		Msg("provider selected")

	authSvc := domainauth.NewAuthService(db, logger.Component(log, "auth"))
	chatSvc := chat.NewService(router, chat.Config{
		VectorStoreID: app.VectorStoreID,
		Temperature:   app.Temperature,
	}, logger.Component(log, "chat"), o.metrics)
	knowledgeSvc := knowledge.NewService(db, router, bus, logger.Component(log, "knowledge"), o.metrics)
	mcpSrv := mcpserver.New("aiweb", version.Version, chatSvc, logger.Component(log, "mcp"))

	handler := api.NewRouter(api.Deps{
		Auth:      authSvc,
		Chat:      chatSvc,
		Knowledge: knowledgeSvc,
		MCP:       mcpserver.Handler(mcpSrv),
		Metrics:   o.metrics,
		Log:       log,

		CORSOrigins: app.CORSAllowedOrigins,
	})

	return &Server{
		config: cfg,
		db:     db,
		bus:    bus,
		auth:   authSvc,
		log:    log,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// EnsureAdmin creates the bootstrap account unless it already exists.
func (s *Server) EnsureAdmin(ctx context.Context, username, password string) error {
	created, err := s.auth.EnsureUser(ctx, domainauth.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	s.log.Info().Str("username", username).Bool("created", created).Msg("admin account ready")
	return nil
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go eventbus.Consume(ctx, s.bus.Subscribe(knowledge.TopicFileUploaded), s.logUpload)

	s.log.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully shuts down the server, closes the event bus and the database connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.bus.Close()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}

	s.log.Info().Msg("server shutdown complete")
	return nil
}

func (s *Server) logUpload(evt eventbus.Event) {
	e, ok := evt.Payload.(knowledge.FileUploadedEvent)
	if !ok {
		return
	}
	ev := s.log.Info()
	if e.Err != nil {
		ev = s.log.Warn().Err(e.Err)
	}
	ev.Str("component", "knowledge").
		Str("store_id", e.StoreID).
		Str("file_id", e.FileID).
		Str("filename", e.Filename).
		Int64("size", e.Size).
		Dur("duration", e.Duration).
		Msg("file ingestion finished")
}
