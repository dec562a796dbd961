package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertSerialized 多个 goroutine 竞争同一个 key 时不会同时进入临界区
func assertSerialized(t *testing.T, locker domainRAG.TurnLocker, key string) {
	t.Helper()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLocalLocker_Serializes(t *testing.T) {
	locker := NewLocalLocker()
	assertSerialized(t, locker, "conv-1")
	assert.Equal(t, 0, locker.size())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	releaseA, err := locker.Acquire(context.Background(), "conv-a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, "conv-b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "conv-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "conv-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 重复释放是安全的
	release()
	release()
	assert.Equal(t, 0, locker.size())
}

func TestNewTurnLocker_DefaultsToLocal(t *testing.T) {
	locker, cleanup, err := NewTurnLocker(&config.RedisConfig{})
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &LocalLocker{}, locker)
}

func TestRedisLocker_Serializes(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	locker := NewRedisLocker(client, 10*time.Second)
	key := "test-" + time.Now().Format("150405.000000")
	assertSerialized(t, locker, key)

	exists, err := client.Exists(context.Background(), keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestRenewInterval(t *testing.T) {
	assert.Equal(t, 40*time.Second, renewInterval(2*time.Minute))
	assert.Equal(t, 100*time.Millisecond, renewInterval(300*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, renewInterval(time.Millisecond))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	locker := NewRedisLocker(client, 300*time.Millisecond)
	key := "renew-" + time.Now().Format("150405.000000")

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	// 持有时间超过 TTL 数倍，锁仍然存在
	time.Sleep(time.Second)
	exists, err := client.Exists(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	release()
	release()
	exists, err = client.Exists(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
