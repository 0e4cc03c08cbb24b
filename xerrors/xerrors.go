// Package xerrors 提供 paygate 统一的错误处理工具。
//
// 约定：
//   - 组件级哨兵错误统一使用 xerrors.New 定义，前缀为组件名，如 "breaker: circuit is open"
//   - 跨层传递时使用 Wrap/Wrapf 追加上下文，保留错误链
//   - 需要机器可读分类的错误使用 WithCode 附加错误码
package xerrors

import (
	"errors"
	"fmt"
)

// 通用哨兵错误，组件错误可包装这些错误以便统一判断
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("timeout")
	ErrUnavailable  = errors.New("unavailable")
	ErrConflict     = errors.New("conflict")
)

// Wrap 用上下文信息包装错误，err 为 nil 时返回 nil。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CodedError 带有机器可读错误码的错误
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// WithCode 为错误附加错误码。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// GetCode 从错误链中提取最外层的错误码，不存在时返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsAny 判断 err 是否匹配 targets 中任意一个。
func IsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Must 如果 err 不为 nil 则 panic，仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// MultiError 合并多个错误
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
	}
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 合并多个错误，忽略 nil；只有一个错误时原样返回。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
