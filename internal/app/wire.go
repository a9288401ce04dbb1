package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/spreadarb/internal/blob/s3"
	"github.com/alanyoungcy/spreadarb/internal/cache/redis"
	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/notify"
	"github.com/alanyoungcy/spreadarb/internal/store/postgres"
)

// Dependencies bundles the optional infrastructure. A nil field means the
// corresponding section is disabled.
type Dependencies struct {
	OpportunityStore domain.OpportunityStore
	ExecutionStore   domain.ExecutionStore
	Publisher        domain.OpportunityPublisher
	LockManager      domain.LockManager
	BlobWriter       domain.BlobWriter
	Alerter          domain.Alerter
}

// Wire connects to every enabled backend and returns a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.OpportunityStore = postgres.NewOpportunityStore(pgClient.Pool())
		deps.ExecutionStore = postgres.NewExecutionStore(pgClient.Pool())
		logger.Info("postgres mirror enabled")
	}

	if cfg.Redis.Enabled {
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

		deps.Publisher = redis.NewPublisher(redisClient, redis.PublisherConfig{
			Channel:      cfg.Redis.Channel,
			Stream:       cfg.Redis.Stream,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
		})
		if cfg.Redis.TradeLock {
			deps.LockManager = redis.NewLockManager(redisClient, "spreadarb:lock:")
		}
		logger.Info("redis publisher enabled", slog.Bool("trade_lock", cfg.Redis.TradeLock))
	}

	if cfg.S3.Enabled {
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
		if err := s3Client.Health(ctx); err != nil {
			// The archiver retries every interval; an unreachable bucket at
			// startup is not fatal.
			logger.Warn("s3 bucket not reachable", slog.String("error", err.Error()))
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if n := notify.NewNotifier(senders, cfg.Notify.Events, logger); n.Enabled() {
		deps.Alerter = n
	}

	return deps, cleanup, nil
}
