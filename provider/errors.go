package provider

import (
	"errors"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// 注册表错误
var (
	ErrEmptyName     = xerrors.Wrap(xerrors.ErrInvalidInput, "provider: name is empty")
	ErrNilAdapter    = xerrors.Wrap(xerrors.ErrInvalidInput, "provider: adapter is nil")
	ErrDuplicateName = xerrors.Wrap(xerrors.ErrConflict, "provider: already registered")
	ErrUnknown       = xerrors.Wrap(xerrors.ErrNotFound, "provider: not registered")
)

// classifiedError 带有显式分类的适配器错误
type classifiedError struct {
	err       error
	temporary bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Temporary 标记 err 为可重试的临时错误
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, temporary: true}
}

// Permanent 标记 err 为不可重试的永久错误（如卡被拒、参数非法）
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, temporary: false}
}

// Classification 读取 err 链上的显式分类；未标记时 ok 为 false
func Classification(err error) (temporary bool, ok bool) {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.temporary, true
	}
	return false, false
}
