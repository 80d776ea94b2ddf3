package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SHORTBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SHORTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "SHORTBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SHORTBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "SHORTBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SHORTBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SHORTBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "SHORTBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "SHORTBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SHORTBOT_DATABASE_SSLMODE")
	setStr(&cfg.Database.SSLMode, "SHORTBOT_DATABASE_SSL_MODE") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "SHORTBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SHORTBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SHORTBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SHORTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SHORTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SHORTBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SHORTBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SHORTBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SHORTBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLSeconds, "SHORTBOT_REDIS_CACHE_TTL_SECONDS")
	setInt(&cfg.Redis.StreamMaxLen, "SHORTBOT_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SHORTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SHORTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SHORTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SHORTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SHORTBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SHORTBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SHORTBOT_S3_FORCE_PATH_STYLE")

	// ── Alpaca ──
	setStr(&cfg.Alpaca.ApiKey, "SHORTBOT_ALPACA_API_KEY")
	setStr(&cfg.Alpaca.ApiSecret, "SHORTBOT_ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.EncryptedSecretPath, "SHORTBOT_ALPACA_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Alpaca.SecretPassword, "SHORTBOT_ALPACA_SECRET_PASSWORD")
	setStr(&cfg.Alpaca.BaseURL, "SHORTBOT_ALPACA_BASE_URL")

	// ── Market ──
	setStr(&cfg.Market.BaseURL, "SHORTBOT_MARKET_BASE_URL")
	setStr(&cfg.Market.UserAgent, "SHORTBOT_MARKET_USER_AGENT")
	setDuration(&cfg.Market.RequestTimeout, "SHORTBOT_MARKET_REQUEST_TIMEOUT")
	setInt(&cfg.Market.RateLimit, "SHORTBOT_MARKET_RATE_LIMIT")
	setDuration(&cfg.Market.RateLimitWindow, "SHORTBOT_MARKET_RATE_LIMIT_WINDOW")

	// ── Trading ──
	setDuration(&cfg.Trading.RefreshInterval, "SHORTBOT_TRADING_REFRESH_INTERVAL")
	setDuration(&cfg.Trading.CycleInterval, "SHORTBOT_TRADING_CYCLE_INTERVAL")
	setInt(&cfg.Trading.MinShortScore, "SHORTBOT_TRADING_MIN_SHORT_SCORE")
	setBool(&cfg.Trading.AutoStart, "SHORTBOT_TRADING_AUTO_START")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "SHORTBOT_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SHORTBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SHORTBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SHORTBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SHORTBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SHORTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SHORTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SHORTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SHORTBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SHORTBOT_MODE")
	setStr(&cfg.LogLevel, "SHORTBOT_LOG_LEVEL")
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
