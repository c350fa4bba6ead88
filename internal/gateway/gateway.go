// ABOUTME: Gateway wiring: broker, backend, registry, orchestrator, HTTP server.
// ABOUTME: Owns startup and graceful shutdown of the whole service.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/agoradev/agora/internal/agent"
	"github.com/agoradev/agora/internal/broker"
	"github.com/agoradev/agora/internal/broker/memory"
	"github.com/agoradev/agora/internal/broker/rabbit"
	"github.com/agoradev/agora/internal/chat"
	"github.com/agoradev/agora/internal/config"
	"github.com/agoradev/agora/internal/model"
	"github.com/agoradev/agora/internal/model/anthropic"
	"github.com/agoradev/agora/internal/model/openai"
)

// Gateway ties the agora components together: the transport broker, the
// agent registry, the chat orchestrator, and the HTTP front door.
type Gateway struct {
	config     *config.Config
	agents     *agent.Registry
	orch       *chat.Orchestrator
	viewers    *chat.Broadcaster
	broker     broker.Broker
	httpServer *http.Server
	logger     *slog.Logger

	keepAlive time.Duration
}

// New creates a Gateway from configuration. A broker that cannot be reached
// at startup is the one transport error treated as fatal.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := initBroker(cfg, logger)
	if err != nil {
		return nil, err
	}

	return newGateway(cfg, b, initBackend(cfg), logger), nil
}

// newGateway wires handlers around ready-made collaborators. Tests use this
// directly with an in-memory broker and a scripted backend.
func newGateway(cfg *config.Config, b broker.Broker, backend model.Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	registry := agent.NewRegistry(backend, cfg.Backend.SystemPrompt, logger)
	viewers := chat.NewBroadcaster(logger)

	var filter chat.Filter
	if sf := cfg.Chat.StrictFilter; sf.Enabled {
		filter = chat.NewStrictFilter(sf.MinLength, sf.BannedPatterns, sf.RejectTables)
		logger.Info("strict response filter enabled",
			"min_length", sf.MinLength, "patterns", len(sf.BannedPatterns))
	}

	orch := chat.NewOrchestrator(b, registry, viewers, filter, logger)

	keepAlive := cfg.Chat.KeepAliveInterval
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}

	g := &Gateway{
		config:    cfg,
		agents:    registry,
		orch:      orch,
		viewers:   viewers,
		broker:    b,
		logger:    logger.With("component", "gateway"),
		keepAlive: keepAlive,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	mux.HandleFunc("/api/agents", g.handleAgents)
	mux.HandleFunc("/api/agents/", g.handleAgentRoutes)
	mux.HandleFunc("/api/prompt", g.handleDirectPrompt)
	mux.HandleFunc("/api/rooms", g.handleRooms)
	mux.HandleFunc("/api/rooms/", g.handleRoomRoutes)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// initBroker connects the configured transport.
func initBroker(cfg *config.Config, logger *slog.Logger) (broker.Broker, error) {
	switch cfg.Broker.Mode {
	case "memory":
		logger.Warn("using in-memory broker, messages stay inside this process")
		return memory.New(), nil
	case "rabbit":
		b, err := rabbit.Dial(cfg.Broker.URL, cfg.Broker.Exchange, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting broker: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown broker mode %q", cfg.Broker.Mode)
	}
}

// initBackend builds the completion backend shared by all agents.
func initBackend(cfg *config.Config) model.Backend {
	switch cfg.Backend.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.Backend.APIKey
			if cfg.Backend.Model != "" {
				o.Model = cfg.Backend.Model
			}
			o.Temperature = cfg.Backend.Temperature
			o.MaxTokens = cfg.Backend.MaxTokens
		})
	default:
		return openai.New(func(o *openai.Options) {
			o.BaseURL = cfg.Backend.BaseURL
			o.APIKey = cfg.Backend.APIKey
			if cfg.Backend.Model != "" {
				o.Model = cfg.Backend.Model
			}
			o.Temperature = cfg.Backend.Temperature
			o.MaxTokens = cfg.Backend.MaxTokens
		})
	}
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down in order: HTTP, orchestrator, broker.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	g.logger.Info("gateway started",
		"http_addr", ln.Addr().String(),
		"broker_mode", g.config.Broker.Mode,
		"backend", g.config.Backend.Provider)

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("http shutdown failed", "error", err)
	}

	g.orch.Close()
	if err := g.broker.Close(); err != nil {
		g.logger.Warn("broker close failed", "error", err)
	}

	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness plus basic occupancy counts.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents, %d rooms)", len(g.agents.Names()), len(g.orch.ListRooms()))
}
