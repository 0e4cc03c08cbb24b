package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// bucket 包装 rate.Limiter 并记录最后访问时间
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// standaloneLimiter 单机限流器
type standaloneLimiter struct {
	cfg       Config
	logger    clog.Logger
	decisions metrics.Counter
	now       func() time.Time

	buckets   sync.Map // map[string]*bucket
	stopCh    chan struct{}
	closeOnce sync.Once
}

func newStandalone(cfg Config, opt options) *standaloneLimiter {
	l := &standaloneLimiter{
		cfg:       cfg,
		logger:    opt.logger,
		decisions: decisionCounter(opt.meter),
		now:       opt.now,
		stopCh:    make(chan struct{}),
	}
	go l.cleanup()

	l.logger.Info("standalone rate limiter created",
		clog.Float64("rate", cfg.Rate),
		clog.Int("burst", cfg.Burst),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l
}

func (l *standaloneLimiter) Limit() Limit {
	return Limit{Rate: l.cfg.Rate, Burst: l.cfg.Burst}
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return false, ErrInvalidLimit
	}

	b := l.bucket(key, limit)
	now := l.now()
	b.mu.Lock()
	allowed := b.limiter.AllowN(now, 1)
	b.lastSeen = now
	b.mu.Unlock()

	recordDecision(ctx, l.decisions, DriverMemory, allowed)
	if !allowed {
		l.logger.DebugContext(ctx, "request throttled", clog.String("key", key))
	}
	return allowed, nil
}

// bucket 获取或创建 key 对应的令牌桶，规则不同的同名 key 互不影响
func (l *standaloneLimiter) bucket(key string, limit Limit) *bucket {
	cacheKey := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)
	if v, ok := l.buckets.Load(cacheKey); ok {
		return v.(*bucket)
	}
	b := &bucket{
		limiter:  rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst),
		lastSeen: l.now(),
	}
	actual, _ := l.buckets.LoadOrStore(cacheKey, b)
	return actual.(*bucket)
}

// cleanup 定期清理空闲的令牌桶
func (l *standaloneLimiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *standaloneLimiter) sweep(now time.Time) int {
	count := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := now.Sub(b.lastSeen)
		b.mu.Unlock()
		if idle > l.cfg.IdleTimeout {
			l.buckets.Delete(key)
			count++
		}
		return true
	})
	if count > 0 {
		l.logger.Debug("cleaned up idle buckets", clog.Int("count", count))
	}
	return count
}

func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() { close(l.stopCh) })
	return nil
}
