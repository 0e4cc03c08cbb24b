package idem

import (
	"context"
	"time"
)

// Store 幂等存储接口
//
// 每个键有三种状态：处理中（Lock 成功）、已完成（SetResult）、不存在（初始或 TTL 过期）。
type Store interface {
	// Lock 尝试标记处理中，false 表示已被其他请求锁定
	Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error)

	// Unlock 仅当令牌匹配时释放锁
	Unlock(ctx context.Context, key string, token LockToken) error

	// Refresh 令牌匹配时将锁的有效期重置为 ttl，false 表示锁已不属于该令牌
	Refresh(ctx context.Context, key string, token LockToken, ttl time.Duration) (bool, error)

	// SetResult 保存结果并释放锁
	SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error

	// GetResult 结果不存在时返回 ErrResultNotFound
	GetResult(ctx context.Context, key string) ([]byte, error)
}

const (
	lockSuffix   = ":lock"
	resultSuffix = ":result"
)

// LockToken 锁令牌
type LockToken string
