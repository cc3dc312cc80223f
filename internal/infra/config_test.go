package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
app:
  name: market_pulse
  version: 0.1.0
feed:
  provider: mock
  symbols: [BTCUSDT, ETHUSDT]
  interval_ms: 500
monitor:
  top_n: 10
  loss_threshold_pct: "3.0"
  recovery_threshold_pct: "1.0"
hub:
  queue_size: 64
server:
  addr: ":8080"
storage:
  path: data/test.db
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.Provider != FeedMock {
		t.Errorf("Expected provider mock, got %s", cfg.Feed.Provider)
	}
	if len(cfg.Feed.Symbols) != 2 {
		t.Errorf("Expected 2 symbols, got %d", len(cfg.Feed.Symbols))
	}
	if cfg.Monitor.TopN != 10 {
		t.Errorf("Expected top_n 10, got %d", cfg.Monitor.TopN)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		return cfg
	}

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base()
		cfg.Feed.Provider = "carrier-pigeon"
		assertConfigError(t, cfg.Validate(), "feed.provider")
	})

	t.Run("no symbols", func(t *testing.T) {
		cfg := base()
		cfg.Feed.Symbols = nil
		assertConfigError(t, cfg.Validate(), "feed.symbols")
	})

	t.Run("binance needs ws url", func(t *testing.T) {
		cfg := base()
		cfg.Feed.Provider = FeedBinance
		cfg.Feed.WSURL = "http://not-a-socket"
		assertConfigError(t, cfg.Validate(), "feed.ws_url")
	})

	t.Run("top_n must be positive", func(t *testing.T) {
		cfg := base()
		cfg.Monitor.TopN = 0
		assertConfigError(t, cfg.Validate(), "monitor.top_n")
	})

	t.Run("queue size must be positive", func(t *testing.T) {
		cfg := base()
		cfg.Hub.QueueSize = 0
		assertConfigError(t, cfg.Validate(), "hub.queue_size")
	})

	t.Run("listen address required", func(t *testing.T) {
		cfg := base()
		cfg.Server.Addr = ""
		assertConfigError(t, cfg.Validate(), "server.addr")
	})
}

func assertConfigError(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected a validation error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected a ConfigError, got %T", err)
	}
	if ce.Field != field {
		t.Errorf("Expected field %s, got %s", field, ce.Field)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PULSE_SYMBOLS", "solusdt, xrpusdt")
	t.Setenv("PULSE_SERVER_ADDR", ":9090")
	t.Setenv("PULSE_TOP_N", "5")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[0] != "SOLUSDT" {
		t.Errorf("PULSE_SYMBOLS not applied: %v", cfg.Feed.Symbols)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("PULSE_SERVER_ADDR not applied: %s", cfg.Server.Addr)
	}
	if cfg.Monitor.TopN != 5 {
		t.Errorf("PULSE_TOP_N not applied: %d", cfg.Monitor.TopN)
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// staleness_sec unset: twice the tick interval.
	if got := cfg.Staleness(); got != time.Second {
		t.Errorf("Expected staleness 1s (2x interval), got %s", got)
	}
	cfg.Monitor.StalenessSec = 7
	if got := cfg.Staleness(); got != 7*time.Second {
		t.Errorf("Expected staleness 7s, got %s", got)
	}

	// keepalive_sec unset: 30s default.
	if got := cfg.Keepalive(); got != 30*time.Second {
		t.Errorf("Expected keepalive 30s, got %s", got)
	}
	cfg.Hub.KeepaliveSec = 10
	if got := cfg.Keepalive(); got != 10*time.Second {
		t.Errorf("Expected keepalive 10s, got %s", got)
	}
}
