package idem

import "github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "idem: config is nil")

	// ErrKeyEmpty 幂等键为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "idem: key is empty")

	// ErrConcurrentRequest 相同幂等键的请求正在处理
	ErrConcurrentRequest = xerrors.Wrap(xerrors.ErrConflict, "idem: concurrent request detected")

	// ErrResultNotFound 结果未找到（内部使用）
	ErrResultNotFound = xerrors.New("idem: result not found")
)
