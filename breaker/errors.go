package breaker

import "github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"

// 错误定义
var (
	// ErrKeyEmpty 提供方名称为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: name is empty")

	// ErrOpenState 熔断器拒绝放行（OPEN，或 HALF_OPEN 的探测名额已被占用）
	ErrOpenState = xerrors.Wrap(xerrors.ErrUnavailable, "breaker: circuit is open")
)
