package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gatekeeper/internal/config"
	"github.com/hitoshi/gatekeeper/internal/database"
	"github.com/hitoshi/gatekeeper/internal/handler"
	"github.com/hitoshi/gatekeeper/internal/logger"
	"github.com/hitoshi/gatekeeper/internal/repository"
)

// backends はゲートウェイが使うストアの実装と後始末をまとめる。
type backends struct {
	sessions  repository.SessionRepository
	whitelist repository.WhitelistRepository
	checks    map[string]handler.Pinger
	closers   []func()
}

// Close は開いた接続をすべて閉じる。
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends は設定に従ってセッションストアとホワイトリストストアを開く。
// 起動時に各ストアへの疎通を確認し（OUTBOUND_TIMEOUTまで再試行する）、MongoDBの場合は一意インデックスを作成する。
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{checks: make(map[string]handler.Pinger)}

	ctx, cancel := context.WithTimeout(ctx, cfg.OutboundTimeout)
	defer cancel()

	var db *sql.DB
	if cfg.SessionStore == config.StorePostgres || cfg.WhitelistStore == config.StorePostgres {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { db.Close() })
		if err := database.PingWithRetry(ctx, "postgres", db.PingContext); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.checks["postgres"] = handler.PingerFunc(db.PingContext)
		slog.Info("database connection established",
			slog.String("database_url", logger.MaskSecret(cfg.DatabaseURL)),
		)
	}

	switch cfg.SessionStore {
	case config.StorePostgres:
		b.sessions = repository.NewPostgresSessionRepo(db)
	case config.StoreMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		b.sessions = repository.NewMemorySessionRepo()
	default:
		client, err := database.OpenRedis(cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { client.Close() })
		pinger := redisPinger(client)
		if err := database.PingWithRetry(ctx, "redis", pinger.Ping); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.checks["redis"] = pinger
		b.sessions = repository.NewRedisSessionRepo(client)
		slog.Info("redis connection established",
			slog.String("redis_url", logger.MaskSecret(cfg.RedisURL)),
		)
	}

	switch cfg.WhitelistStore {
	case config.StorePostgres:
		b.whitelist = repository.NewPostgresWhitelistRepo(db)
	default:
		client, mdb, err := database.OpenMongo(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			client.Disconnect(dctx)
		})
		pinger := handler.PingerFunc(func(ctx context.Context) error {
			return database.PingMongo(ctx, client)
		})
		if err := database.PingWithRetry(ctx, "mongo", pinger); err != nil {
			b.Close()
			return nil, err
		}
		repo := repository.NewMongoWhitelistRepo(mdb)
		if err := repo.EnsureIndexes(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.checks["mongo"] = pinger
		b.whitelist = repo
		slog.Info("mongo connection established",
			slog.String("database", cfg.MongoDatabase),
		)
	}

	return b, nil
}

func redisPinger(client redis.UniversalClient) handler.Pinger {
	return handler.PingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
