package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	FeedMock    = "mock"
	FeedBinance = "binance"
)

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config holds every application setting. Sensitive and deployment-local
// values can be overridden through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		Provider   string   `yaml:"provider"` // "mock" or "binance"
		WSURL      string   `yaml:"ws_url"`
		Symbols    []string `yaml:"symbols"`
		IntervalMS int      `yaml:"interval_ms"` // mock tick cadence
	} `yaml:"feed"`

	Monitor struct {
		TopN         int             `yaml:"top_n"`
		LossPct      decimal.Decimal `yaml:"loss_threshold_pct"`
		RecoveryPct  decimal.Decimal `yaml:"recovery_threshold_pct"`
		StalenessSec int             `yaml:"staleness_sec"`
	} `yaml:"monitor"`

	Hub struct {
		QueueSize    int `yaml:"queue_size"`
		KeepaliveSec int `yaml:"keepalive_sec"`
	} `yaml:"hub"`

	Trading struct {
		Enabled     bool            `yaml:"enabled"`
		LotSize     decimal.Decimal `yaml:"lot_size"`
		ShortPeriod int             `yaml:"short_period"`
		LongPeriod  int             `yaml:"long_period"`
	} `yaml:"trading"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Feed.Provider {
	case FeedMock, FeedBinance:
	default:
		return &ConfigError{Field: "feed.provider", Err: fmt.Errorf("unknown provider %q", c.Feed.Provider)}
	}
	if len(c.Feed.Symbols) == 0 {
		return &ConfigError{Field: "feed.symbols", Err: fmt.Errorf("at least one symbol is required")}
	}
	if c.Feed.Provider == FeedBinance {
		if !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
			return &ConfigError{Field: "feed.ws_url", Err: fmt.Errorf("invalid websocket URL %q", c.Feed.WSURL)}
		}
	}
	if c.Monitor.TopN <= 0 {
		return &ConfigError{Field: "monitor.top_n", Err: fmt.Errorf("must be positive")}
	}
	if c.Monitor.LossPct.IsNegative() || c.Monitor.RecoveryPct.IsNegative() {
		return &ConfigError{Field: "monitor", Err: fmt.Errorf("thresholds must not be negative")}
	}
	if c.Trading.Enabled {
		if c.Trading.ShortPeriod <= 0 || c.Trading.ShortPeriod >= c.Trading.LongPeriod {
			return &ConfigError{Field: "trading", Err: fmt.Errorf("short_period must be positive and less than long_period")}
		}
		if !c.Trading.LotSize.IsPositive() {
			return &ConfigError{Field: "trading.lot_size", Err: fmt.Errorf("lot_size must be positive")}
		}
	}
	if c.Hub.QueueSize <= 0 {
		return &ConfigError{Field: "hub.queue_size", Err: fmt.Errorf("must be positive")}
	}
	if c.Server.Addr == "" {
		return &ConfigError{Field: "server.addr", Err: fmt.Errorf("listen address is required")}
	}
	return nil
}

// Staleness is the freshness window after which rankings report stale.
// Defaults to twice the mock tick interval when unset.
func (c *Config) Staleness() time.Duration {
	if c.Monitor.StalenessSec > 0 {
		return time.Duration(c.Monitor.StalenessSec) * time.Second
	}
	interval := c.Feed.IntervalMS
	if interval <= 0 {
		interval = 1000
	}
	return 2 * time.Duration(interval) * time.Millisecond
}

// Keepalive is the subscriber silence window before the hub reaps a
// connection. Design default: 30s.
func (c *Config) Keepalive() time.Duration {
	if c.Hub.KeepaliveSec > 0 {
		return time.Duration(c.Hub.KeepaliveSec) * time.Second
	}
	return 30 * time.Second
}

// overrideWithEnv applies environment variables over the file config.
// PULSE_SYMBOLS takes the comma-separated universe the deployment uses.
func overrideWithEnv(cfg *Config) {
	if symbols := os.Getenv("PULSE_SYMBOLS"); symbols != "" {
		var names []string
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, strings.ToUpper(s))
			}
		}
		if len(names) > 0 {
			cfg.Feed.Symbols = names
		}
	}
	if provider := os.Getenv("PULSE_FEED_PROVIDER"); provider != "" {
		cfg.Feed.Provider = provider
	}
	if addr := os.Getenv("PULSE_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if path := os.Getenv("PULSE_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if topN := os.Getenv("PULSE_TOP_N"); topN != "" {
		if n, err := strconv.Atoi(topN); err == nil {
			cfg.Monitor.TopN = n
		}
	}
}
