package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spendwise/internal/log"
)

// RedisLimiter is a fixed-window limiter on INCR/TTL/EXPIRE so that every API
// replica shares one budget per client. Redis errors let the request through.
type RedisLimiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
	logger      *log.Logger
}

func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration, logger *log.Logger) *RedisLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultConfig().RequestsPerMinute
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisLimiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger.WithComponent(log.ComponentHTTP),
	}
}

// key format: rl:<window_seconds>:<identifier>
func (l *RedisLimiter) key(ident string) string {
	return "rl:" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + ident
}

// Allow counts one request for ident. The counter and its TTL are read in
// one MULTI, and a key left without a TTL gets one on the next request.
func (l *RedisLimiter) Allow(ctx context.Context, ident string) bool {
	key := l.key(ident)
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Rate limiter unavailable, allowing request", log.FieldError, err)
		return true
	}
	if needsExpiry(ttl.Val()) {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.WarnContext(ctx, "Rate limiter expiry not set", log.FieldError, err)
		}
	}
	return incr.Val() <= int64(l.maxRequests)
}

// needsExpiry reports whether a TTL reply means the key never expires.
func needsExpiry(ttl time.Duration) bool {
	return ttl == -1
}
