// Package redis stores chain selection and attempt history in Redis.
//
// Attempts are kept as JSON documents indexed by sorted sets scored by
// creation time, so re-saving an attempt never duplicates it in history.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lugondev/anchorlite/internal/config"
	"github.com/lugondev/anchorlite/internal/storage"
)

// attemptTTL bounds how long attempt documents are retained.
const attemptTTL = 30 * 24 * time.Hour

func init() {
	storage.RegisterRedisFactory(func(ctx context.Context, cfg *config.RedisConfig) (storage.Repository, error) {
		return NewRedisRepository(ctx, cfg)
	})
}

// NewClient creates a go-redis client from configuration.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type RedisRepository struct {
	rdb      *redis.Client
	keys     keySpace
	attempts *redisAttemptRepository
}

func NewRedisRepository(ctx context.Context, cfg *config.RedisConfig) (*RedisRepository, error) {
	rdb := NewClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return newRepository(rdb, cfg.KeyPrefix), nil
}

func newRepository(rdb *redis.Client, prefix string) *RedisRepository {
	keys := keySpace{prefix: prefix}
	return &RedisRepository{
		rdb:      rdb,
		keys:     keys,
		attempts: &redisAttemptRepository{rdb: rdb, keys: keys},
	}
}

// Client exposes the underlying client so the flow gate can share it.
func (r *RedisRepository) Client() *redis.Client { return r.rdb }

func (r *RedisRepository) Selections() storage.SelectionRepository {
	return &redisSelectionRepository{rdb: r.rdb, keys: r.keys}
}

func (r *RedisRepository) Attempts() storage.AttemptRepository {
	return r.attempts
}

func (r *RedisRepository) Close() error {
	return r.rdb.Close()
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

type keySpace struct {
	prefix string
}

func (k keySpace) selection() string         { return k.prefix + "selection" }
func (k keySpace) attempt(id string) string  { return k.prefix + "attempt:" + id }
func (k keySpace) signature(s string) string { return k.prefix + "attempt:sig:" + s }
func (k keySpace) history() string           { return k.prefix + "attempts" }
func (k keySpace) walletHistory(w string) string {
	return k.prefix + "attempts:wallet:" + w
}

type redisSelectionRepository struct {
	rdb  *redis.Client
	keys keySpace
}

func (r *redisSelectionRepository) Load(ctx context.Context) (string, error) {
	key, err := r.rdb.Get(ctx, r.keys.selection()).Result()
	switch {
	case err == redis.Nil:
		return "", storage.ErrNotFound
	case err != nil:
		return "", fmt.Errorf("redis get error: %w", err)
	default:
		return key, nil
	}
}

func (r *redisSelectionRepository) Save(ctx context.Context, key string) error {
	return r.rdb.Set(ctx, r.keys.selection(), key, 0).Err()
}

type redisAttemptRepository struct {
	rdb  *redis.Client
	keys keySpace
}

func (r *redisAttemptRepository) Save(ctx context.Context, attempt *storage.AttemptModel) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to encode attempt: %w", err)
	}

	score := float64(attempt.CreatedAt.UnixNano())
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.attempt(attempt.ID), data, attemptTTL)
		pipe.ZAdd(ctx, r.keys.history(), redis.Z{Score: score, Member: attempt.ID})
		pipe.ZAdd(ctx, r.keys.walletHistory(attempt.Wallet), redis.Z{Score: score, Member: attempt.ID})
		if attempt.Signature != "" {
			pipe.Set(ctx, r.keys.signature(attempt.Signature), attempt.ID, attemptTTL)
		}
		return nil
	})
	return err
}

func (r *redisAttemptRepository) FindBySignature(ctx context.Context, signature string) (*storage.AttemptModel, error) {
	id, err := r.rdb.Get(ctx, r.keys.signature(signature)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	data, err := r.rdb.Get(ctx, r.keys.attempt(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var attempt storage.AttemptModel
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, fmt.Errorf("failed to decode attempt %s: %w", id, err)
	}
	return &attempt, nil
}

func (r *redisAttemptRepository) FindRecent(ctx context.Context, wallet string, limit int) ([]*storage.AttemptModel, error) {
	index := r.keys.history()
	if wallet != "" {
		index = r.keys.walletHistory(wallet)
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.rdb.ZRevRange(ctx, index, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.attempt(id)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget error: %w", err)
	}

	attempts := make([]*storage.AttemptModel, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired document, index entry is stale
			continue
		}
		var attempt storage.AttemptModel
		if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
			return nil, fmt.Errorf("failed to decode attempt %s: %w", ids[i], err)
		}
		attempts = append(attempts, &attempt)
	}
	return attempts, nil
}
