package lock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/BaSui01/inpaintflow/internal/tlsutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 🔒 Redis 分布式闸门
// =============================================================================

// RedisConfig Redis 闸门配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	// 启用 TLS 时使用 tlsutil 的加固配置
	TLS bool

	// 锁键前缀，每个槽位为 Key:<index>
	Key string
	// 槽位数量
	Slots int
	// 锁过期时间，持有期间按 TTL/3 自动续期
	TTL time.Duration
	// 获取失败时的轮询间隔
	PollInterval time.Duration
}

// DefaultRedisConfig 返回默认配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		Key:          "inpaintflow:inference",
		Slots:        1,
		TTL:          30 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// 仅当 token 匹配时删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 仅当 token 匹配时续期
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock 基于 Redis 的跨副本闸门
type RedisLock struct {
	client     *redis.Client
	config     RedisConfig
	logger     *zap.Logger
	ownsClient bool

	mu     sync.RWMutex
	closed bool
}

// NewRedisLock 创建 Redis 闸门并检查连接
func NewRedisLock(config RedisConfig, logger *zap.Logger) (*RedisLock, error) {
	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	}
	if config.TLS {
		host, _, err := net.SplitHostPort(config.Addr)
		if err != nil {
			host = config.Addr
		}
		opts.TLSConfig = tlsutil.ClientConfig(host)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l := NewRedisLockWithClient(client, config, logger)
	l.ownsClient = true

	logger.Info("redis inference gate initialized",
		zap.String("addr", config.Addr),
		zap.Bool("tls", config.TLS),
		zap.String("key", config.Key),
		zap.Int("slots", l.config.Slots),
	)
	return l, nil
}

// NewRedisLockWithClient 使用已有客户端创建闸门，Close 不会关闭该客户端
func NewRedisLockWithClient(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisLock {
	defaults := DefaultRedisConfig()
	if config.Key == "" {
		config.Key = defaults.Key
	}
	if config.Slots < 1 {
		config.Slots = 1
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	return &RedisLock{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "redis_lock")),
	}
}

// Acquire 实现 Gate：轮询各槽位，直到 SET NX 成功或 ctx 结束
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		if l.isClosed() {
			return nil, ErrClosed
		}

		key, err := l.tryAcquire(ctx, token)
		if err != nil {
			return nil, err
		}
		if key != "" {
			return l.hold(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLock) tryAcquire(ctx context.Context, token string) (string, error) {
	for i := 0; i < l.config.Slots; i++ {
		key := l.slotKey(i)
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("acquire inference lock: %w", err)
		}
		if ok {
			l.logger.Debug("inference lock acquired", zap.String("key", key))
			return key, nil
		}
	}
	return "", nil
}

// hold 启动续期协程并返回释放函数
func (l *RedisLock) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		interval := refreshInterval(l.config.TTL)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				n, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.config.TTL.Milliseconds()).Int64()
				cancel()
				if err != nil {
					l.logger.Warn("inference lock refresh failed", zap.String("key", key), zap.Error(err))
				} else if n == 0 {
					l.logger.Warn("inference lock lost before release", zap.String("key", key))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Error("inference lock release failed", zap.String("key", key), zap.Error(err))
				return
			}
			l.logger.Debug("inference lock released", zap.String("key", key))
		})
	}
}

func refreshInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d >= time.Millisecond {
		return d
	}
	return time.Millisecond
}

func (l *RedisLock) slotKey(i int) string {
	return l.config.Key + ":" + strconv.Itoa(i)
}

// Ping 检查 Redis 连接，供就绪检查使用
func (l *RedisLock) Ping(ctx context.Context) error {
	if l.isClosed() {
		return ErrClosed
	}
	return l.client.Ping(ctx).Err()
}

// Mode 实现 Gate
func (l *RedisLock) Mode() string { return ModeRedis }

// Slots 实现 Gate
func (l *RedisLock) Slots() int { return l.config.Slots }

// Close 实现 Gate
func (l *RedisLock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.logger.Info("closing redis inference gate")

	if l.ownsClient {
		return l.client.Close()
	}
	return nil
}

func (l *RedisLock) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
