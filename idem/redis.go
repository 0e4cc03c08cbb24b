package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`     // [必填] 如 "127.0.0.1:6379"
	Password     string        `mapstructure:"password"` // [可选]
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`      // 默认 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 默认 2
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // 默认 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // 默认 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // 默认 3s
	Trace        bool          `mapstructure:"trace"`          // 启用 redisotel 追踪与指标
}

func (c *RedisConfig) setDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// NewRedisClient 建立 Redis 连接并 Ping，Trace 为 true 时注册 redisotel 插桩
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "idem: redis addr is required")
	}
	cfg.setDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	if cfg.Trace {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, xerrors.Wrap(err, "idem: instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, xerrors.Wrap(err, "idem: instrument redis metrics")
		}
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrapf(xerrors.ErrUnavailable, "idem: redis ping %s: %v", cfg.Addr, err)
	}
	return client, nil
}

// compareAndDelete 仅当锁令牌匹配时删除
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// compareAndExpire 仅当锁令牌匹配时重置有效期
var compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// setResultAndUnlock 写入结果，令牌匹配时顺带释放锁
var setResultAndUnlock = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
if redis.call("GET", KEYS[2]) == ARGV[3] then
	redis.call("DEL", KEYS[2])
end
return 1
`)

// redisStore Redis 存储实现（非导出）
type redisStore struct {
	client redis.UniversalClient
	prefix string
}

func newRedisStore(client redis.UniversalClient, prefix string) *redisStore {
	return &redisStore{client: client, prefix: prefix}
}

func (rs *redisStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}
	ok, err := rs.client.SetNX(ctx, rs.prefix+key+lockSuffix, string(token), ttl).Result()
	if err != nil {
		return "", false, xerrors.Wrap(err, "idem: acquire lock")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (rs *redisStore) Unlock(ctx context.Context, key string, token LockToken) error {
	err := compareAndDelete.Run(ctx, rs.client, []string{rs.prefix + key + lockSuffix}, string(token)).Err()
	if err != nil {
		return xerrors.Wrap(err, "idem: release lock")
	}
	return nil
}

func (rs *redisStore) Refresh(ctx context.Context, key string, token LockToken, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, rs.client, []string{rs.prefix + key + lockSuffix}, string(token), ttl.Milliseconds()).Int64()
	if err != nil {
		return false, xerrors.Wrap(err, "idem: refresh lock")
	}
	return n == 1, nil
}

func (rs *redisStore) SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	keys := []string{rs.prefix + key + resultSuffix, rs.prefix + key + lockSuffix}
	err := setResultAndUnlock.Run(ctx, rs.client, keys, val, ttl.Milliseconds(), string(token)).Err()
	if err != nil {
		return xerrors.Wrap(err, "idem: set result")
	}
	return nil
}

func (rs *redisStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	val, err := rs.client.Get(ctx, rs.prefix+key+resultSuffix).Bytes()
	if xerrors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "idem: get result")
	}
	return val, nil
}
