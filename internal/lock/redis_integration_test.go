package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

func openRedisForIntegrationTest(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("FOODTRACK_REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLockIntegration(t *testing.T) {
	client := openRedisForIntegrationTest(t)
	prefix := "foodtrack:test:" + time.Now().Format("150405.000000") + ":"
	locker := NewRedis(client, RedisOptions{TTL: 2 * time.Second, KeyPrefix: prefix})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ORD1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "ORD1")
	require.ErrorIs(t, err, domain.ErrLockNotAcquired)

	unlock()

	again, err := locker.Lock(ctx, "ORD1")
	require.NoError(t, err)
	again()

	exists, err := client.Exists(ctx, prefix+"ORD1").Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}
