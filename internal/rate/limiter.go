package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Endpoint names accepted by Allow. Unknown endpoints fall back to the
// login budget, the tightest of the three defaults.
const (
	EndpointRegister = "register"
	EndpointLogin    = "login"
	EndpointVerify   = "verify"
)

// Config holds the per-address admission budget.
type Config struct {
	Enabled     bool
	Window      time.Duration
	RegisterMax int
	LoginMax    int
	VerifyMax   int
}

// Limiter enforces fixed-window request budgets per (endpoint, address) pair
// using Redis counters. Every request counts toward the window, successful or
// not; this is admission control, not failure tracking.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records one request for the pair and reports whether it fits the
// window budget. An empty address shares a single bucket per endpoint.
func (l *Limiter) Allow(ctx context.Context, endpoint, addr string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, key(endpoint, addr), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.maxFor(endpoint)) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) maxFor(endpoint string) int {
	switch endpoint {
	case EndpointRegister:
		return l.config.RegisterMax
	case EndpointVerify:
		return l.config.VerifyMax
	default:
		return l.config.LoginMax
	}
}

func key(endpoint, addr string) string {
	return "tgr:" + endpoint + ":" + addr
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
