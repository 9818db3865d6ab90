// Package store 提供不透明的键值存储，核心逻辑不校验也不拥有其中的数据
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sekou/sekou/internal/config"
	"github.com/sekou/sekou/internal/database"
)

// ErrNotFound 键不存在或已过期
var ErrNotFound = errors.New("store: key not found")

// Store 键值存储
// ttl 为 0 表示永不过期
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open 按配置打开存储
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "memory", "":
		return NewMemory(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		return NewRedis(rdb, cfg.Storage.Prefix), nil
	case "postgres":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgres(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Key 拼接键
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
