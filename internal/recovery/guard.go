package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultGuardTTL outlives any recovery token the provider issues.
const DefaultGuardTTL = 24 * time.Hour

// Guard lets a recovery token be exchanged at most once.
type Guard interface {
	// Acquire returns true for the first caller presenting token.
	Acquire(ctx context.Context, token string) (bool, error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryGuard remembers tokens for ttl (DefaultGuardTTL when zero).
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (g *MemoryGuard) Acquire(_ context.Context, token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.seen {
		if now.After(exp) {
			delete(g.seen, k)
		}
	}
	key := digest(token)
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}

// RedisGuard shares token claims between instances with SETNX.
type RedisGuard struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{redis: client, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := g.redis.SetNX(ctx, g.prefix+digest(token), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recovery guard: %w", err)
	}
	return ok, nil
}

// Tokens are stored hashed; the raw value is a bearer secret until used.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
