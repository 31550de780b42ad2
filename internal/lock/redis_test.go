package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 RedisLock 测试
// =============================================================================

func setupTestRedisLock(t *testing.T, slots int, ttl time.Duration) (*miniredis.Miniredis, *RedisLock) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.Slots = slots
	cfg.TTL = ttl
	cfg.PollInterval = 5 * time.Millisecond

	l, err := NewRedisLock(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return mr, l
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, l := setupTestRedisLock(t, 1, 30*time.Second)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	key := l.slotKey(0)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	release()
	assert.False(t, mr.Exists(key))

	// 重复释放无副作用
	release()
}

func TestRedisLock_SecondCallerWaits(t *testing.T) {
	_, l := setupTestRedisLock(t, 1, 30*time.Second)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(context.Background())
		if err == nil {
			r()
		}
		close(acquired)
	}()

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller did not acquire the lock after release")
	}
}

func TestRedisLock_Slots(t *testing.T) {
	_, l := setupTestRedisLock(t, 2, 30*time.Second)
	assert.Equal(t, 2, l.Slots())

	r1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.Error(t, err)

	r1()
	r2()
}

func TestRedisLock_ReleaseKeepsForeignOwner(t *testing.T) {
	mr, l := setupTestRedisLock(t, 1, 30*time.Second)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// 锁过期后被其他副本抢占
	key := l.slotKey(0)
	require.NoError(t, mr.Set(key, "other-replica"))

	release()

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}

func TestRedisLock_ExpiredLockCanBeTaken(t *testing.T) {
	mr, l := setupTestRedisLock(t, 1, 30*time.Second)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	mr.FastForward(31 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx)
	require.NoError(t, err)
	r2()
}

func TestRedisLock_RefreshExtendsTTL(t *testing.T) {
	mr, l := setupTestRedisLock(t, 1, 300*time.Millisecond)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	key := l.slotKey(0)
	mr.FastForward(200 * time.Millisecond)
	require.Less(t, mr.TTL(key), 300*time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL(key) == 300*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisLock_WithClientDefaultsAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLockWithClient(client, RedisConfig{}, zap.NewNop())
	assert.Equal(t, DefaultRedisConfig().Key, l.config.Key)
	assert.Equal(t, 1, l.config.Slots)
	assert.Equal(t, ModeRedis, l.Mode())
	require.NoError(t, l.Ping(context.Background()))

	require.NoError(t, l.Close())
	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Ping(context.Background()), ErrClosed)

	// 外部客户端不随闸门关闭
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewRedisLock_ConnectionFailure(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"

	_, err := NewRedisLock(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRedisLock_TLSAgainstPlainServer(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.TLS = true

	// 明文 Redis 无法完成 TLS 握手
	_, err := NewRedisLock(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRefreshInterval(t *testing.T) {
	assert.Equal(t, 10*time.Second, refreshInterval(30*time.Second))
	assert.Equal(t, time.Millisecond, refreshInterval(time.Microsecond))
}
