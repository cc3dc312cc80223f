package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market_pulse/internal/app"
	"market_pulse/internal/decision"
	"market_pulse/internal/domain"
	"market_pulse/internal/engine"
	"market_pulse/internal/hub"
	"market_pulse/internal/infra"
	"market_pulse/internal/infra/binance"
	"market_pulse/internal/infra/mockfeed"
	"market_pulse/internal/ledger"
	"market_pulse/internal/server"
	"market_pulse/internal/stats"
)

const configPath = "configs/config.yaml"

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Core Components
	registry := engine.NewRegistry(bootstrap.Storage)
	bootstrap.SeedRegistry(registry)

	statsEngine := stats.NewEngine(cfg.Staleness())
	broadcastHub := hub.New(nil, cfg.Hub.QueueSize, cfg.Keepalive())
	processor := engine.NewProcessor(registry, statsEngine, broadcastHub)
	broadcastHub.SetSnapshot(processor)

	book := ledger.New(registry, bootstrap.Storage)
	if positions, err := bootstrap.Storage.Positions(); err == nil {
		book.RestorePositions(positions)
	}
	if orders, err := bootstrap.Storage.RecentOrders(1); err == nil && len(orders) > 0 {
		book.RestoreOrderSeq(orders[0].ID)
	}

	// 4. Tick Source (mock generator or live Binance stream)
	var source domain.TickSource
	switch cfg.Feed.Provider {
	case infra.FeedBinance:
		source = binance.NewWorker(cfg.Feed.WSURL, cfg.Feed.Symbols)
	default:
		interval := time.Duration(cfg.Feed.IntervalMS) * time.Millisecond
		source = mockfeed.NewGenerator(cfg.Feed.Symbols, interval, nil)
	}
	if err := source.Start(ctx); err != nil {
		slog.Error("❌ Failed to start tick source", slog.Any("error", err))
		os.Exit(1)
	}
	defer source.Stop()

	go processor.Run(ctx, source)
	go broadcastHub.Run(ctx)
	slog.InfoContext(ctx, "✅ Tick pipeline started",
		slog.String("provider", cfg.Feed.Provider),
		slog.Int("symbols", len(cfg.Feed.Symbols)))

	// 5. Decision Producer (optional paper-trading loop)
	var strat decision.Strategy
	if cfg.Trading.Enabled {
		strat = decision.NewSMACross(cfg.Trading.ShortPeriod, cfg.Trading.LongPeriod, cfg.Trading.LotSize)
	}
	producer := decision.NewProducer(broadcastHub, book, registry, strat, bootstrap.Storage)
	if logs, err := bootstrap.Storage.RecentDecisions(1); err == nil && len(logs) > 0 {
		producer.RestoreSeq(logs[0].ID)
	}
	if cfg.Trading.Enabled {
		go producer.Run(ctx)
		slog.InfoContext(ctx, "✅ Decision producer started",
			slog.Int("short", cfg.Trading.ShortPeriod),
			slog.Int("long", cfg.Trading.LongPeriod))
	}

	// 6. HTTP + WebSocket Delivery
	srv := server.New(cfg, processor, statsEngine, book, producer, broadcastHub)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Market pulse engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
