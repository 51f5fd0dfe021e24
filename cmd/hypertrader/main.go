// hypertrader — a connector, order manager, and position tracker for the
// Hyperliquid perpetuals venue.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the runtime, waits for SIGINT/SIGTERM
//	internal/runtime           — orchestrator: wires the connector, order manager, positions, order books
//	internal/hyperliquid       — venue connector: REST (/info, /exchange) + WS (/ws) client
//	internal/hlsign, hlwire    — EIP-712 phantom-agent signing and canonical MessagePack encoding
//	internal/ordermanager      — dual-indexed order lifecycle store
//	internal/position          — weighted-average-entry position and PnL tracker
//	internal/orderbook         — local L2 book mirror per trading pair
//	internal/store             — JSON file persistence for account state (survives restarts)
//	pkg/decimal, pkg/types     — fixed-scale decimal arithmetic and the shared trading vocabulary
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hyperliquid-trader/internal/config"
	"hyperliquid-trader/internal/runtime"
	"hyperliquid-trader/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("HYPERTRADER_CONFIG"); p != "" {
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

	logger.Info("starting hypertrader", "config", cfg.Sanitize())

	rt, err := runtime.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}

	pairs := make([]types.TradingPair, 0, len(cfg.Pairs))
	for _, symbol := range cfg.Pairs {
		pairs = append(pairs, types.TradingPair{Symbol: symbol, Quote: "USD"})
	}

	if err := rt.Start(pairs); err != nil {
		logger.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}

	logger.Info("hypertrader started", "pairs", cfg.Pairs, "exchange", cfg.Exchange.Name, "testnet", cfg.Exchange.Testnet)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	rt.Stop()
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
