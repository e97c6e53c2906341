package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wricardo/memory-tiles/game/engine"
)

// RedisStore keeps one JSON value per player under "memory:game:<player>".
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps sessions forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis connects using a redis:// or rediss:// URL.
func OpenRedis(ctx context.Context, rawURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// Save implements Store
func (r *RedisStore) Save(ctx context.Context, playerID string, s engine.Session) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	payload, err := encodeSession(id, s, time.Now())
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, gameKey(id), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load implements Store
func (r *RedisStore) Load(ctx context.Context, playerID string) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}
	raw, err := r.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return engine.Session{}, fmt.Errorf("redis get: %w", err)
	}
	return decodeSession(raw)
}

// Delete implements Store
func (r *RedisStore) Delete(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, gameKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func gameKey(playerID string) string { return "memory:game:" + playerID }
