package metrics

import "strconv"

const (
	// 常见的标签
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelProvider    = "provider"
	LabelFrom        = "from"
	LabelTo          = "to"
	LabelErrorKind   = "error_kind"
)

const (
	// 编排与提供方相关的指标名
	MetricOrchestrationsTotal     = "paygate_orchestrations_total"
	MetricAttemptsTotal           = "paygate_attempts_total"
	MetricAttemptDurationSeconds  = "paygate_attempt_duration_seconds"
	MetricProviderSuccessRate     = "paygate_provider_success_rate"
	MetricProviderLatencyMs       = "paygate_provider_latency_ms"
	MetricBreakerStateChangeTotal = "paygate_breaker_state_changes_total"
)

const (
	OperationHTTPServer = "http.server"
)

const (
	// 常见的结果
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownRoute 未命中路由时的统一标签值
const UnknownRoute = "unknown"

// NoErrorKind 请求成功或处理器未设置错误类型时的 error_kind 标签值
const NoErrorKind = "none"

// HTTPStatusClass 返回 HTTP 状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 将 HTTP 状态码映射到常见的结果
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}
