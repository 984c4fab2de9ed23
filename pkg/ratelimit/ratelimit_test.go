package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterTake(t *testing.T) {
	l := NewLocalLimiter(100, 100)

	// With a burstable limiter, the first take must not block noticeably
	taken := l.Take(context.Background())
	assert.Less(t, taken, 100*time.Millisecond)
}

func TestRedisLimiterTake(t *testing.T) {
	s, err := miniredis.Run()
	assert.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	l := NewRedisLimiter(client, 100)

	Take(context.Background(), l)
}
