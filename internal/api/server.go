package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"arby/internal/config"
)

// Server runs the read-only dashboard HTTP/WebSocket API.
type Server struct {
	provider Provider
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a dashboard server bound to cfg.Port.
func NewServer(cfg config.DashboardConfig, provider Provider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/status", handlers.HandleStatus)
	mux.HandleFunc("/orderbooks", handlers.HandleOrderBooks)
	mux.HandleFunc("/wallets", handlers.HandleWallets)
	mux.HandleFunc("/balances", handlers.HandleBalances)
	mux.HandleFunc("/opportunities", handlers.HandleOpportunities)
	mux.HandleFunc("/trades", handlers.HandleTrades)
	mux.HandleFunc("/live", handlers.HandleLive)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		provider: provider,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start runs the hub and HTTP server; blocks until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// BroadcastStatus pushes a fresh status snapshot to every connected client.
// Call this periodically from the engine's tick loop to keep /live current.
func (s *Server) BroadcastStatus() {
	s.hub.BroadcastEvent(DashboardEvent{Type: "status", Timestamp: time.Now(), Data: BuildStatus(s.provider)})
}
