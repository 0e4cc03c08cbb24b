// Package idem 为调用方提供的幂等键提供一次性执行保证。
//
// 同一个键第一次执行时持有锁并运行业务函数，成功结果按 TTL 缓存；
// 之后的相同请求直接返回缓存结果，执行期间到达的并发请求返回 ErrConcurrentRequest。
// 执行失败不缓存，锁被释放，调用方可以重试。
//
// fn 运行期间锁每隔 LockTTL/3 续期一次，耗时超过 LockTTL 的执行不会被并发请求重复触发。
// fn 成功而结果写入失败时仍返回结果，锁保留到 TTL 过期，不会因为缓存失败而放行重复执行。
//
// 后端：
//   - memory：单进程
//   - redis：多实例共享，锁使用带令牌的 SET NX，解锁为比较后删除
//
// 基本使用：
//
//	guard, _ := idem.New(&idem.Config{Driver: idem.DriverMemory})
//	resp, cached, err := idem.Do(ctx, guard, "payment:"+key, func(ctx context.Context) (Response, error) {
//	    return orchestrator.ProcessPayment(ctx, req)
//	})
package idem

import (
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Idempotency 幂等执行接口
type Idempotency interface {
	// Execute 执行幂等操作，cached 为 true 表示结果来自缓存
	//
	//   1. key 已完成 → 返回缓存结果
	//   2. key 处理中 → 返回 ErrConcurrentRequest
	//   3. key 不存在 → 执行 fn，成功时缓存结果
	Execute(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) (val []byte, cached bool, err error)
}

// Do 以 msgpack 编码结果的泛型便捷封装
func Do[T any](ctx context.Context, i Idempotency, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	val, cached, err := i.Execute(ctx, key, func(ctx context.Context) ([]byte, error) {
		out, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(out)
	})
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := msgpack.Unmarshal(val, &out); err != nil {
		return zero, false, xerrors.Wrap(err, "idem: decode cached result")
	}
	return out, cached, nil
}

// New 创建幂等组件
//
//	guard, err := idem.New(&idem.Config{
//	    Driver:     idem.DriverRedis,
//	    Prefix:     "paygate:idem:",
//	    DefaultTTL: 24 * time.Hour,
//	}, idem.WithRedisClient(client), idem.WithLogger(logger))
func New(cfg *Config, opts ...Option) (Idempotency, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}

	var store Store
	switch c.Driver {
	case DriverRedis:
		if opt.redis == nil {
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "idem: redis client is required, use WithRedisClient")
		}
		store = newRedisStore(opt.redis, c.Prefix)
	default:
		store = newMemoryStore(c.Prefix)
	}

	opt.logger.Info("idem created",
		clog.String("driver", string(c.Driver)),
		clog.String("prefix", c.Prefix),
		clog.Duration("default_ttl", c.DefaultTTL),
		clog.Duration("lock_ttl", c.LockTTL))

	return &idem{cfg: &c, store: store, logger: opt.logger}, nil
}

// idem 幂等组件实现（非导出）
type idem struct {
	cfg    *Config
	store  Store
	logger clog.Logger
}

func (i *idem) Execute(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrKeyEmpty
	}

	cached, err := i.store.GetResult(ctx, key)
	if err == nil {
		i.logger.DebugContext(ctx, "idem cache hit", clog.String("key", key))
		return cached, true, nil
	}
	if !xerrors.Is(err, ErrResultNotFound) {
		i.logger.ErrorContext(ctx, "failed to get cached result", clog.String("key", key), clog.Error(err))
		return nil, false, err
	}

	token, locked, err := i.store.Lock(ctx, key, i.cfg.LockTTL)
	if err != nil {
		i.logger.ErrorContext(ctx, "failed to acquire lock", clog.String("key", key), clog.Error(err))
		return nil, false, err
	}
	if !locked {
		i.logger.DebugContext(ctx, "concurrent request detected", clog.String("key", key))
		return nil, false, ErrConcurrentRequest
	}

	// 结果写入失败时也保留锁，fn 已经产生了副作用
	keepLock := false
	defer func() {
		if keepLock {
			return
		}
		// 业务失败时释放锁，ctx 可能已取消
		if err := i.store.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			i.logger.WarnContext(ctx, "failed to release lock", clog.String("key", key), clog.Error(err))
		}
	}()

	stop := i.watchdog(ctx, key, token)
	val, err := fn(ctx)
	stop()
	if err != nil {
		return nil, false, err
	}

	keepLock = true
	if err := i.store.SetResult(context.WithoutCancel(ctx), key, val, i.cfg.DefaultTTL, token); err != nil {
		i.logger.ErrorContext(ctx, "failed to store result, lock kept until it expires",
			clog.String("key", key),
			clog.Duration("lock_ttl", i.cfg.LockTTL),
			clog.Error(err))
	}
	return val, false, nil
}

// watchdog 在 fn 运行期间续期锁，返回的函数停止续期并等待续期协程退出
func (i *idem) watchdog(ctx context.Context, key string, token LockToken) func() {
	interval := i.cfg.LockTTL / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
				ok, err := i.store.Refresh(renewCtx, key, token, i.cfg.LockTTL)
				cancel()
				if err != nil {
					i.logger.WarnContext(ctx, "lock renewal failed", clog.String("key", key), clog.Error(err))
					continue
				}
				if !ok {
					i.logger.WarnContext(ctx, "lock ownership lost", clog.String("key", key))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-done
		})
	}
}
