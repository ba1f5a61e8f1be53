package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-relay/core"
	"github.com/koscakluka/ema-relay/internal/config"
	"github.com/koscakluka/ema-relay/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server serves the voice chat websocket plus health and metrics endpoints.
type Server struct {
	config       config.ServerConfig
	orchestrator *orchestration.Orchestrator
	tracker      *Tracker
	metrics      *metrics.Metrics
	logger       *slog.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	startTime  time.Time
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

func New(cfg config.ServerConfig, orchestrator *orchestration.Orchestrator, opts ...Option) *Server {
	s := &Server{
		config:       cfg,
		orchestrator: orchestrator,
		tracker:      NewTracker(),
		logger:       logger,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.config.Path, s.handleVoiceChat)
	mux.HandleFunc("GET "+s.config.HealthPath, s.handleHealth)
	mux.Handle("GET "+s.config.MetricsPath, s.metrics.Handler())

	return otelhttp.NewHandler(mux, "ema-relay",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves until ctx is done, then stops accepting connections, cancels
// every live session and waits for them up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Addr, "path", s.config.Path)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down", "sessions", s.tracker.Count())
	err := s.httpServer.Shutdown(ctx)

	s.tracker.CancelAll()
	if !s.tracker.Wait(ctx) {
		err = errors.Join(err, fmt.Errorf("%d sessions did not end in time", s.tracker.Count()))
	}
	return err
}

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied to the client.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	// The request context is not cancelled for hijacked connections, the
	// tracker cancel is what ends the session on shutdown.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := s.tracker.Register(uuid.NewString(), cancel)
	defer unregister()

	started := time.Now()
	err = s.orchestrator.Start(ctx, conn)
	s.metrics.ObserveSession(time.Since(started))
	if err != nil {
		s.logger.Warn("session ended with error", "remote", r.RemoteAddr, "error", err)
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Sessions: s.tracker.Count(),
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, r.Header.Get("Origin"))
}
