// Package config defines the top-level configuration for the spread arbitrage
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by environment variables.
type Config struct {
	Instrument string         `toml:"instrument"`
	LogLevel   string         `toml:"log_level"`
	Trade      TradeConfig    `toml:"trade"`
	Binance    BinanceConfig  `toml:"binance"`
	OKX        OKXConfig      `toml:"okx"`
	Recorder   RecorderConfig `toml:"recorder"`
	Redis      RedisConfig    `toml:"redis"`
	Postgres   PostgresConfig `toml:"postgres"`
	S3         S3Config       `toml:"s3"`
	Server     ServerConfig   `toml:"server"`
	Notify     NotifyConfig   `toml:"notify"`
}

// TradeConfig holds the trading thresholds. Thresholds are in basis points.
type TradeConfig struct {
	QuoteBudget       float64  `toml:"quote_budget"`
	SpreadMinBps      float64  `toml:"spread_min_bps"`
	SlippageBufferBps float64  `toml:"slippage_buffer_bps"`
	TakerFeeBps       float64  `toml:"taker_fee_bps"`
	StaleWindow       duration `toml:"stale_window"`
	DryRun            bool     `toml:"dry_run"`
	// LegTimeout bounds each order call; zero disables the timeout.
	LegTimeout   duration `toml:"leg_timeout"`
	QueueSize    int      `toml:"queue_size"`
	RulesTimeout duration `toml:"rules_timeout"`
}

// BinanceConfig holds Binance spot API credentials and endpoints.
type BinanceConfig struct {
	APIKey       string `toml:"api_key"`
	APISecret    string `toml:"api_secret"`
	RestHost     string `toml:"rest_host"`
	WsHost       string `toml:"ws_host"`
	RecvWindowMs int    `toml:"recv_window_ms"`
}

// OKXConfig holds OKX v5 API credentials and endpoints.
type OKXConfig struct {
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	Passphrase string `toml:"passphrase"`
	RestHost   string `toml:"rest_host"`
	WsHost     string `toml:"ws_host"`
	// Simulated routes orders to the OKX demo trading environment.
	Simulated bool `toml:"simulated"`
}

// RecorderConfig holds the opportunity log location.
type RecorderConfig struct {
	Dir       string `toml:"dir"`
	QueueSize int    `toml:"queue_size"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	Channel      string `toml:"channel"`
	Stream       string `toml:"stream"`
	StreamMaxLen int64  `toml:"stream_max_len"`
	// TradeLock guards trade attempts with a distributed lock so only one
	// process trades an instrument at a time.
	TradeLock bool     `toml:"trade_lock"`
	LockTTL   duration `toml:"lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	Prefix          string   `toml:"prefix"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Instrument: "BTC/USDT",
		LogLevel:   "info",
		Trade: TradeConfig{
			QuoteBudget:       100,
			SpreadMinBps:      8,
			SlippageBufferBps: 5,
			TakerFeeBps:       10,
			StaleWindow:       duration{time.Second},
			DryRun:            true,
			QueueSize:         256,
			RulesTimeout:      duration{15 * time.Second},
		},
		Binance: BinanceConfig{
			RestHost:     "https://api.binance.com",
			WsHost:       "wss://stream.binance.com:9443",
			RecvWindowMs: 5000,
		},
		OKX: OKXConfig{
			RestHost: "https://www.okx.com",
			WsHost:   "wss://ws.okx.com:8443/ws/v5/public",
		},
		Recorder: RecorderConfig{
			Dir:       "logs",
			QueueSize: 1024,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			Channel:      "spreadarb:opportunities",
			Stream:       "spreadarb:max_spread",
			StreamMaxLen: 10000,
			LockTTL:      duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "spreadarb",
			ForcePathStyle:  true,
			Prefix:          "logs",
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Notify: NotifyConfig{
			Events: []string{domain.EventTradeFilled, domain.EventTradeFailed, domain.EventLegUnhedged},
		},
	}
}

// TradeParams converts the configured thresholds into the immutable domain
// trade configuration (1bp = 0.0001).
func (c *Config) TradeParams() domain.TradeConfig {
	return domain.TradeConfig{
		Instrument:             c.Instrument,
		QuoteBudget:            decimal.NewFromFloat(c.Trade.QuoteBudget),
		SpreadMinFraction:      bpsToFraction(c.Trade.SpreadMinBps),
		SlippageBufferFraction: bpsToFraction(c.Trade.SlippageBufferBps),
		TakerFeeFraction:       bpsToFraction(c.Trade.TakerFeeBps),
		StalenessWindow:        c.Trade.StaleWindow.Duration,
		DryRun:                 c.Trade.DryRun,
		LegTimeout:             c.Trade.LegTimeout.Duration,
	}
}

func bpsToFraction(bps float64) float64 { return bps / 10000 }

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Warnings lists settings that are valid but risky. They are logged at
// startup and do not stop the bot.
func (c *Config) Warnings() []string {
	var warns []string
	if c.Redis.Enabled && c.Redis.TradeLock && c.Trade.LegTimeout.Duration == 0 {
		warns = append(warns, fmt.Sprintf(
			"redis.trade_lock is on but trade.leg_timeout is 0: a leg running past the %s lock ttl lets another process trade",
			c.Redis.LockTTL.Duration))
	}
	return warns
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	base, quote, ok := strings.Cut(c.Instrument, "/")
	if !ok || base == "" || quote == "" {
		errs = append(errs, fmt.Sprintf("instrument must look like BASE/QUOTE, got %q", c.Instrument))
	}

	// Trade
	if c.Trade.QuoteBudget <= 0 {
		errs = append(errs, "trade: quote_budget must be > 0")
	}
	if c.Trade.SpreadMinBps < 0 || c.Trade.SlippageBufferBps < 0 || c.Trade.TakerFeeBps < 0 {
		errs = append(errs, "trade: spread_min_bps, slippage_buffer_bps and taker_fee_bps must be >= 0")
	}
	if c.Trade.StaleWindow.Duration <= 0 {
		errs = append(errs, "trade: stale_window must be > 0")
	}
	if c.Trade.LegTimeout.Duration < 0 {
		errs = append(errs, "trade: leg_timeout must be >= 0")
	}

	// Venues: live trading needs credentials on both sides.
	if !c.Trade.DryRun {
		if c.Binance.APIKey == "" || c.Binance.APISecret == "" {
			errs = append(errs, "binance: api_key and api_secret are required when dry_run is false")
		}
		if c.OKX.APIKey == "" || c.OKX.APISecret == "" || c.OKX.Passphrase == "" {
			errs = append(errs, "okx: api_key, api_secret and passphrase are required when dry_run is false")
		}
	}
	if c.Binance.RestHost == "" || c.Binance.WsHost == "" {
		errs = append(errs, "binance: rest_host and ws_host must not be empty")
	}
	if c.OKX.RestHost == "" || c.OKX.WsHost == "" {
		errs = append(errs, "okx: rest_host and ws_host must not be empty")
	}

	if c.Recorder.Dir == "" {
		errs = append(errs, "recorder: dir must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
