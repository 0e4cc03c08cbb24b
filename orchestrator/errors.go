package orchestrator

import (
	"errors"
	"net/http"
)

// Kind 编排错误类别
type Kind string

const (
	KindValidation             Kind = "validation"
	KindFraudBlocked           Kind = "fraud_blocked"
	KindComplianceViolation    Kind = "compliance_violation"
	KindProviderTemporary      Kind = "provider_temporary"
	KindProviderPermanent      Kind = "provider_permanent"
	KindCircuitOpen            Kind = "circuit_open"
	KindAllCandidatesExhausted Kind = "all_candidates_exhausted"
	KindDuplicateRequest       Kind = "duplicate_request"
	KindNotFound               Kind = "not_found"
	KindInternal               Kind = "internal"
)

// Error 返回给调用方的编排错误
//
// Message 面向调用方，不包含逐次尝试的细节；细节只写入审计记录。
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Is 按 Kind 比较，使 errors.Is(err, ErrValidation) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// 按类别匹配的哨兵错误
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrFraudBlocked           = &Error{Kind: KindFraudBlocked}
	ErrComplianceViolation    = &Error{Kind: KindComplianceViolation}
	ErrProviderTemporary      = &Error{Kind: KindProviderTemporary}
	ErrProviderPermanent      = &Error{Kind: KindProviderPermanent}
	ErrCircuitOpen            = &Error{Kind: KindCircuitOpen}
	ErrAllCandidatesExhausted = &Error{Kind: KindAllCandidatesExhausted}
	ErrDuplicateRequest       = &Error{Kind: KindDuplicateRequest}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInternal               = &Error{Kind: KindInternal}
)

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf 返回 err 的类别，非 *Error 视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindFraudBlocked:
		return http.StatusForbidden
	case KindComplianceViolation, KindProviderPermanent:
		return http.StatusUnprocessableEntity
	case KindDuplicateRequest:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindProviderTemporary, KindAllCandidatesExhausted:
		return http.StatusBadGateway
	case KindCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
