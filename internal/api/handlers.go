package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"arby/internal/config"
)

// Handlers holds every HTTP handler's dependencies.
type Handlers struct {
	provider Provider
	cfg      config.DashboardConfig
	hub      *Hub
	logger   *slog.Logger
}

// NewHandlers creates a Handlers instance.
func NewHandlers(provider Provider, cfg config.DashboardConfig, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{provider: provider, cfg: cfg, hub: hub, logger: logger.With("component", "api-handlers")}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// HandleHealth is a liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

// HandleStatus serves the per-route score snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildStatus(h.provider))
}

// HandleOrderBooks serves the top-of-book mirror for every tracked market.
func (h *Handlers) HandleOrderBooks(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildOrderBooks(h.provider))
}

// HandleWallets serves the balance mirror for every configured venue/currency.
func (h *Handlers) HandleWallets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildWallets(h.provider))
}

// HandleOpportunities serves the recent opportunity history.
func (h *Handlers) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildOpportunities(h.provider))
}

// HandleTrades serves the recent filled order-leg history.
func (h *Handlers) HandleTrades(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildTrades(h.provider))
}

// HandleBalances is an alias over /wallets kept for the spec's named endpoint.
func (h *Handlers) HandleBalances(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, BuildWallets(h.provider))
}

// HandleLive upgrades the connection and streams dashboard events.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn)

	evt := DashboardEvent{Type: "status", Data: BuildStatus(h.provider)}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal initial status failed", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial status to client")
	}
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
