package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. A missing file is not an error: defaults and environment
// still apply. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyLegacyEnv(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyLegacyEnv honours the un-prefixed variable names used by earlier
// deployments. Threshold values are basis points and STALE_MS is milliseconds.
// SPREADARB_* variables are applied afterwards and take precedence.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Instrument, "SYMBOL")
	setFloat64(&cfg.Trade.QuoteBudget, "QUOTE_BUDGET")
	setFloat64(&cfg.Trade.SpreadMinBps, "SPREAD_MIN_BP")
	setFloat64(&cfg.Trade.SlippageBufferBps, "SLIPPAGE_BUFFER_BP")
	setFloat64(&cfg.Trade.TakerFeeBps, "FEE_TAKER_BP")
	setMillis(&cfg.Trade.StaleWindow, "STALE_MS")
	setBool(&cfg.Trade.DryRun, "DRY_RUN")

	setStr(&cfg.Binance.APIKey, "BINANCE_API_KEY")
	setStr(&cfg.Binance.APISecret, "BINANCE_API_SECRET")
	setStr(&cfg.OKX.APIKey, "OKX_API_KEY")
	setStr(&cfg.OKX.APISecret, "OKX_SECRET")
	setStr(&cfg.OKX.Passphrase, "OKX_PASSWORD")
}

// applyEnvOverrides reads well-known SPREADARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Trade ──
	setFloat64(&cfg.Trade.QuoteBudget, "SPREADARB_TRADE_QUOTE_BUDGET")
	setFloat64(&cfg.Trade.SpreadMinBps, "SPREADARB_TRADE_SPREAD_MIN_BPS")
	setFloat64(&cfg.Trade.SlippageBufferBps, "SPREADARB_TRADE_SLIPPAGE_BUFFER_BPS")
	setFloat64(&cfg.Trade.TakerFeeBps, "SPREADARB_TRADE_TAKER_FEE_BPS")
	setDuration(&cfg.Trade.StaleWindow, "SPREADARB_TRADE_STALE_WINDOW")
	setBool(&cfg.Trade.DryRun, "SPREADARB_TRADE_DRY_RUN")
	setDuration(&cfg.Trade.LegTimeout, "SPREADARB_TRADE_LEG_TIMEOUT")
	setInt(&cfg.Trade.QueueSize, "SPREADARB_TRADE_QUEUE_SIZE")

	// ── Binance ──
	setStr(&cfg.Binance.APIKey, "SPREADARB_BINANCE_API_KEY")
	setStr(&cfg.Binance.APISecret, "SPREADARB_BINANCE_API_SECRET")
	setStr(&cfg.Binance.RestHost, "SPREADARB_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "SPREADARB_BINANCE_WS_HOST")

	// ── OKX ──
	setStr(&cfg.OKX.APIKey, "SPREADARB_OKX_API_KEY")
	setStr(&cfg.OKX.APISecret, "SPREADARB_OKX_API_SECRET")
	setStr(&cfg.OKX.Passphrase, "SPREADARB_OKX_PASSPHRASE")
	setStr(&cfg.OKX.RestHost, "SPREADARB_OKX_REST_HOST")
	setStr(&cfg.OKX.WsHost, "SPREADARB_OKX_WS_HOST")
	setBool(&cfg.OKX.Simulated, "SPREADARB_OKX_SIMULATED")

	// ── Recorder ──
	setStr(&cfg.Recorder.Dir, "SPREADARB_RECORDER_DIR")
	setInt(&cfg.Recorder.QueueSize, "SPREADARB_RECORDER_QUEUE_SIZE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SPREADARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SPREADARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADARB_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SPREADARB_REDIS_TLS_ENABLED")
	setBool(&cfg.Redis.TradeLock, "SPREADARB_REDIS_TRADE_LOCK")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SPREADARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SPREADARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SPREADARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SPREADARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SPREADARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SPREADARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SPREADARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SPREADARB_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "SPREADARB_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SPREADARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SPREADARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPREADARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPREADARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPREADARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPREADARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPREADARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPREADARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "SPREADARB_S3_PREFIX")
	setDuration(&cfg.S3.ArchiveInterval, "SPREADARB_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPREADARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPREADARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SPREADARB_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPREADARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPREADARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Instrument, "SPREADARB_INSTRUMENT")
	setStr(&cfg.LogLevel, "SPREADARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setMillis(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			dst.Duration = time.Duration(n) * time.Millisecond
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
