package rate

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-memory Cache good enough for counter semantics.
type memoryCache struct {
	counters map[string]int64
	expires  map[string]time.Duration
	incrErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		counters: map[string]int64{},
		expires:  map[string]time.Duration{},
	}
}

func (m *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.counters[key], _ = strconv.ParseInt(value, 10, 64)
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	return strconv.FormatInt(m.counters[key], 10), nil
}

func (m *memoryCache) Del(ctx context.Context, key string) error {
	delete(m.counters, key)
	return nil
}

func (m *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.expires[key] = ttl
	return nil
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	mem := newMemoryCache()
	limiter := NewLimiter(mem, "rl:test:", 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit must be denied")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	mem := newMemoryCache()
	limiter := NewLimiter(mem, "rl:test:", 1, time.Minute)

	allowed, err := limiter.Allow(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "2.2.2.2")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_SetsWindowExpiryOnFirstHit(t *testing.T) {
	mem := newMemoryCache()
	limiter := NewLimiter(mem, "rl:test:", 5, time.Minute)

	_, err := limiter.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	require.Len(t, mem.expires, 1)
	for _, ttl := range mem.expires {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestLimiter_PropagatesBackendError(t *testing.T) {
	mem := newMemoryCache()
	mem.incrErr = errors.New("connection refused")
	limiter := NewLimiter(mem, "rl:test:", 5, time.Minute)

	allowed, err := limiter.Allow(context.Background(), "1.2.3.4")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestLimiter_DefaultPrefix(t *testing.T) {
	mem := newMemoryCache()
	limiter := NewLimiter(mem, "", 1, time.Minute)

	_, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)

	for key := range mem.counters {
		assert.Contains(t, key, "rl:k:")
	}
}
