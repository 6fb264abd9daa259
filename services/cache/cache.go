// Package cachesvc keeps revoked token ids until they expire.
package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/darasa/core"
)

// TokenBlacklist remembers revoked JWT ids.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

const blacklistPrefix = "darasa:token:revoked:"

type redisBlacklist struct {
	rdb *goredis.Client
}

// NewRedisBlacklist connects to redis and pings it.
func NewRedisBlacklist(conf *core.Config) (TokenBlacklist, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return &redisBlacklist{rdb: rdb}, nil
}

func (b *redisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(b.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(), "revoking token")
}

func (b *redisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}

func (b *redisBlacklist) Close() error {
	return b.rdb.Close()
}

// memoryBlacklist is used when no redis is configured, and in tests.
type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time // jti: expiry
}

func NewMemoryBlacklist() TokenBlacklist {
	return &memoryBlacklist{revoked: make(map[string]time.Time)}
}

func (b *memoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for id, exp := range b.revoked {
		if now.After(exp) {
			delete(b.revoked, id)
		}
	}
	b.revoked[jti] = now.Add(ttl)
	return nil
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.revoked[jti]
	return ok && time.Now().Before(exp), nil
}

func (b *memoryBlacklist) Close() error { return nil }

// New returns the redis blacklist when redis is configured, the in-memory one otherwise.
func New(conf *core.Config) (TokenBlacklist, error) {
	if conf.Redis.Addr == "" {
		return NewMemoryBlacklist(), nil
	}
	return NewRedisBlacklist(conf)
}
