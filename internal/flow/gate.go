package flow

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
)

// Gate admits at most one transaction flow at a time.
type Gate interface {
	// TryAcquire returns ErrFlowInProgress when the gate is held. The returned
	// release function is safe to call more than once.
	TryAcquire(ctx context.Context) (release func(), err error)
}

// LocalGate is an in-process Gate.
type LocalGate struct {
	held atomic.Bool
}

// NewLocalGate creates an open gate.
func NewLocalGate() *LocalGate {
	return &LocalGate{}
}

func (g *LocalGate) TryAcquire(ctx context.Context) (func(), error) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, anchorerrors.ErrFlowInProgress
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.held.Store(false)
		}
	}, nil
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisGate is a Gate shared by every process using the same Redis key. The
// lock expires after ttl so that a crashed holder cannot wedge it.
type RedisGate struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisGate creates a gate on key.
func NewRedisGate(rdb *redis.Client, key string, ttl time.Duration) *RedisGate {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGate{rdb: rdb, key: key, ttl: ttl}
}

func (g *RedisGate) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire flow gate: %w", err)
	}
	if !ok {
		return nil, anchorerrors.ErrFlowInProgress
	}

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{g.key}, token).Err()
	}, nil
}
