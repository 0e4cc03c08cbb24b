package ratelimit

import "github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"

var (
	// ErrClientNil redis 模式未提供客户端
	ErrClientNil = xerrors.New("ratelimit: redis client is nil")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 限流规则无效
	ErrInvalidLimit = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: invalid limit")
)
