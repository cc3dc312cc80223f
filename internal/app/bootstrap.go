package app

import (
	"log/slog"

	"market_pulse/internal/engine"
	"market_pulse/internal/infra"
	"market_pulse/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB).
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("database initialized", slog.String("path", cfg.Storage.Path))

	return nil
}

// SeedRegistry restores persisted symbols and registers the configured
// universe so the first tick of a known symbol never races a create.
func (b *Bootstrap) SeedRegistry(registry *engine.Registry) {
	if persisted, err := b.Storage.Symbols(); err != nil {
		slog.Warn("failed to restore symbols", slog.Any("error", err))
	} else if len(persisted) > 0 {
		registry.Restore(persisted)
		slog.Info("symbols restored", slog.Int("count", len(persisted)))
	}
	registry.Seed(b.Config.Feed.Symbols)
}
