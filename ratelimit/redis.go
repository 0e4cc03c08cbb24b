package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// tokenBucketScript 时间戳令牌桶
//
// KEYS[1] 桶的键；ARGV[1] 速率；ARGV[2] 容量；ARGV[3] 当前时间（秒，浮点）。
// 键中保存下一次可放行的时间戳，返回 {allowed, remaining}。
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local interval = 1 / rate
local fill_time = capacity * interval

local last = tonumber(redis.call("GET", KEYS[1]))
if last == nil then
  last = now
end

local next_time = math.max(last, now)
local updated = next_time + interval
local horizon = now + fill_time

if updated <= horizon then
  redis.call("SET", KEYS[1], updated, "EX", math.ceil(fill_time * 2))
  return {1, math.floor((horizon - updated) / interval)}
end
return {0, math.floor((horizon - next_time) / interval)}
`)

// redisLimiter 多实例共享配额的限流器
type redisLimiter struct {
	cfg       Config
	client    redis.UniversalClient
	logger    clog.Logger
	decisions metrics.Counter
	opt       options
}

func newRedisLimiter(cfg Config, opt options) *redisLimiter {
	opt.logger.Info("redis rate limiter created", clog.String("prefix", cfg.Prefix))
	return &redisLimiter{
		cfg:       cfg,
		client:    opt.redis,
		logger:    opt.logger,
		decisions: decisionCounter(opt.meter),
		opt:       opt,
	}
}

func (l *redisLimiter) Limit() Limit {
	return Limit{Rate: l.cfg.Rate, Burst: l.cfg.Burst}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return false, ErrInvalidLimit
	}

	now := float64(l.opt.now().UnixNano()) / 1e9
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.cfg.Prefix + key}, limit.Rate, limit.Burst, now).Int64Slice()
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit script failed", clog.String("key", key), clog.Error(err))
		return false, xerrors.Wrap(err, "ratelimit: run token bucket script")
	}
	if len(res) != 2 {
		return false, xerrors.New("ratelimit: unexpected script result")
	}

	allowed := res[0] == 1
	recordDecision(ctx, l.decisions, DriverRedis, allowed)
	if !allowed {
		l.logger.DebugContext(ctx, "request throttled",
			clog.String("key", key), clog.Int64("remaining", res[1]))
	}
	return allowed, nil
}

// Close 客户端由调用方管理
func (l *redisLimiter) Close() error {
	return nil
}
