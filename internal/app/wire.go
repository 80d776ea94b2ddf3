package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/lachlanbr/shortbot/internal/blob/s3"
	"github.com/lachlanbr/shortbot/internal/broker"
	"github.com/lachlanbr/shortbot/internal/cache/redis"
	"github.com/lachlanbr/shortbot/internal/config"
	"github.com/lachlanbr/shortbot/internal/crypto"
	"github.com/lachlanbr/shortbot/internal/domain"
	"github.com/lachlanbr/shortbot/internal/market"
	"github.com/lachlanbr/shortbot/internal/notify"
	"github.com/lachlanbr/shortbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	WatchlistStore   domain.WatchlistStore
	PositionStore    domain.PositionStore
	TransactionStore domain.TransactionStore
	SettingsStore    domain.SettingsStore
	AuditStore       domain.AuditStore

	// Caches and coordination
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Market data (quote cache and rate limiting already applied)
	Market domain.MarketData

	// Brokerage; nil when the bot runs fully simulated.
	Broker domain.Brokerage

	// Blob storage (archive mode only)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage. Every mode
// needs Postgres and Redis; only archival touches the blob store.
func needsS3(mode string) bool {
	return mode == "archive"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.WatchlistStore = postgres.NewWatchlistStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.SettingsStore = postgres.NewSettingsStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	quoteTTL := 60 * time.Second
	if cfg.Redis.CacheTTLSeconds > 0 {
		quoteTTL = time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second
	}
	streamMaxLen := int64(10000)
	if cfg.Redis.StreamMaxLen > 0 {
		streamMaxLen = int64(cfg.Redis.StreamMaxLen)
	}

	deps.QuoteCache = redis.NewQuoteCache(redisClient, quoteTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, streamMaxLen)

	// --- Market data ---
	yahoo := market.NewYahooClient(market.YahooConfig{
		BaseURL:   cfg.Market.BaseURL,
		UserAgent: cfg.Market.UserAgent,
		Timeout:   cfg.Market.RequestTimeout.Duration,
	})
	deps.Market = market.NewCachingProvider(yahoo, deps.QuoteCache, deps.RateLimiter, market.ProviderConfig{
		RateLimit:  cfg.Market.RateLimit,
		RateWindow: cfg.Market.RateLimitWindow.Duration,
	}, logger)

	// --- Brokerage (only when credentials are configured) ---
	if cfg.Alpaca.Enabled() {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:           cfg.Alpaca.ApiSecret,
			EncryptedSecretPath: cfg.Alpaca.EncryptedSecretPath,
			SecretPassword:      cfg.Alpaca.SecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: alpaca secret: %w", err)
		}
		deps.Broker = broker.NewAlpaca(broker.AlpacaConfig{
			ApiKey:    cfg.Alpaca.ApiKey,
			ApiSecret: secret,
			BaseURL:   cfg.Alpaca.BaseURL,
		}, logger)
		logger.Info("brokerage trading enabled", slog.String("base_url", cfg.Alpaca.BaseURL))
	} else {
		logger.Info("no brokerage credentials, running fully simulated")
	}

	// --- S3 blob storage (archive mode only) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TransactionStore, deps.AuditStore, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
