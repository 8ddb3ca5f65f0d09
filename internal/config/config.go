package config

import (
	"os"
	"strconv"
	"time"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
)

type Config struct {
	Environment string
	LogLevel    string
	LogFile     string

	Server struct {
		BaseURL         string
		WebSocketURL    string
		SnapshotTimeout time.Duration
	}

	Trading struct {
		Symbol      string
		Duration    string // history window, e.g. "1 D"
		BarSize     string // e.g. "1 min"
		MaxQuantity int
	}

	Session struct {
		TokenFile string
	}

	Poller struct {
		Interval time.Duration
	}

	Stream struct {
		PingInterval      time.Duration
		ReconnectDelay    time.Duration
		MaxReconnectDelay time.Duration
	}

	Monitoring struct {
		Enabled bool
		Port    int
	}
}

func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
	}

	cfg.Server.BaseURL = getEnv("SERVER_URL", "http://localhost:8000/api")
	cfg.Server.WebSocketURL = getEnv("SERVER_WS_URL", "ws://localhost:8000/api/ws/candles")
	cfg.Server.SnapshotTimeout = getEnvDuration("SNAPSHOT_TIMEOUT", 30*time.Second)

	cfg.Trading.Symbol = getEnv("TRADING_SYMBOL", "MBT")
	cfg.Trading.Duration = getEnv("CANDLE_DURATION", "1 D")
	cfg.Trading.BarSize = getEnv("CANDLE_BAR_SIZE", "1 min")
	cfg.Trading.MaxQuantity = getEnvInt("MAX_ORDER_QUANTITY", 10)

	cfg.Session.TokenFile = getEnv("TOKEN_FILE", defaultTokenFile())

	cfg.Poller.Interval = getEnvDuration("POSITION_POLL_INTERVAL", 5*time.Second)

	cfg.Stream.PingInterval = getEnvDuration("WS_PING_INTERVAL", 25*time.Second)
	cfg.Stream.ReconnectDelay = getEnvDuration("WS_RECONNECT_DELAY", time.Second)
	cfg.Stream.MaxReconnectDelay = getEnvDuration("WS_MAX_RECONNECT_DELAY", 30*time.Second)

	cfg.Monitoring.Enabled = getEnvBool("METRICS_ENABLED", false)
	cfg.Monitoring.Port = getEnvInt("METRICS_PORT", 9090)

	return cfg
}

// Validate checks values the rest of the client cannot work without
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errs.NewConfigurationError("config", "SERVER_URL is required")
	}
	if c.Server.WebSocketURL == "" {
		return errs.NewConfigurationError("config", "SERVER_WS_URL is required")
	}
	if c.Trading.Symbol == "" {
		return errs.NewConfigurationError("config", "TRADING_SYMBOL is required")
	}
	if c.Poller.Interval <= 0 {
		return errs.NewConfigurationError("config", "POSITION_POLL_INTERVAL must be positive")
	}
	if c.Stream.PingInterval <= 0 {
		return errs.NewConfigurationError("config", "WS_PING_INTERVAL must be positive")
	}
	if c.Trading.MaxQuantity < 1 {
		return errs.NewConfigurationError("config", "MAX_ORDER_QUANTITY must be at least 1")
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".btc-trading-token.json"
	}
	return home + "/.btc-trading/token.json"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
