// Arby — a cross-exchange cryptocurrency arbitrage engine.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	engine/engine.go           — orchestrator: wires adapters, books, wallets, routes, scanner, dashboard
//	exchange/client_*.go       — REST clients per venue (Binance-like HMAC-SHA256, Kraken-like HMAC-SHA512)
//	exchange/ws.go             — order-book WebSocket feeds with auto-reconnect and scheduled session reset
//	route/builder.go           — enumerates Direct/MultiLeg/Cross routes from currency roles and discovered pairs
//	scanner/scanner.go         — fixed-cadence tick loop: score, threshold, size, hand off to the coordinator
//	coordinator/worker.go      — per-leg place/retry/chase execution loop
//	coordinator/coordinator.go — runs both legs of a route concurrently with a shared timeout
//	wallet/refresh.go          — re-pulls balances after execution, with bounded retries
//	persistence/sink.go        — append-only JSONL log of opportunities, order legs, and balances
//	api/server.go              — read-only HTTP/WebSocket dashboard
//
// How it makes money:
//
//	The scanner compares the best bid on one venue against the best ask on
//	another (or chains of such comparisons for multi-leg and cross routes)
//	and, once the spread clears a dynamic profit threshold net of fees,
//	places both legs concurrently and re-prices any unfilled remainder
//	toward the book until it fills or exhausts its retries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"arby/internal/config"
	"arby/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARBY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, *cfg, logger)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("arby started",
		"venues", venueNames(cfg.Venues),
		"currencies", cfg.Routes.Currencies,
		"min_profit", cfg.Scanner.MinProfitStr,
		"dashboard", cfg.Dashboard.Enabled,
		"dry_run", cfg.DryRun,
	)
	if cfg.Dashboard.Enabled {
		logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func venueNames(venues []config.VenueConfig) []string {
	names := make([]string, len(venues))
	for i, v := range venues {
		names[i] = v.Name
	}
	return names
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
