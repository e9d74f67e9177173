package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/sio60/guildrunner/pkg/cache"
)

// Limiter is a fixed-window counter (INCR + EXPIRE) over the shared
// cache. Windows are aligned to wall-clock boundaries so all replicas
// count against the same key.
type Limiter struct {
	cache  cache.Cache
	prefix string
	max    int64
	window time.Duration
}

func NewLimiter(cache cache.Cache, prefix string, max int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &Limiter{
		cache:  cache,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	cacheKey := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	hits, err := l.cache.Incr(ctx, cacheKey)
	if err != nil {
		return false, err
	}

	// set expiry on first hit
	if hits == 1 {
		if err := l.cache.Expire(ctx, cacheKey, l.window); err != nil {
			return false, err
		}
	}

	return hits <= l.max, nil
}
