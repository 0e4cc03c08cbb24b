package trace

const (
	// 支付链路属性键
	AttrOrchestrationID = "paygate.orchestration_id"
	AttrCorrelationID   = "paygate.correlation_id"
	AttrTenantID        = "paygate.tenant_id"
	AttrKind            = "paygate.kind"
	AttrProvider        = "paygate.provider"
	AttrAttempt         = "paygate.attempt"
	AttrOutcome         = "paygate.outcome"
)

const (
	// Messaging 语义属性键
	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination"
	AttrMessagingOperation   = "messaging.operation"
)

const (
	MessagingSystemNATS       = "nats"
	MessagingOperationPublish = "publish"
)

const tracerName = "paygate"

// SpanNameOrchestration 编排 Span 名，kind 为 payment 或 refund
func SpanNameOrchestration(kind string) string {
	return "paygate." + kind
}

// SpanNameAttempt 单个提供方尝试的 Span 名
func SpanNameAttempt(provider string) string {
	return "paygate.attempt " + provider
}

// SpanNamePublish 发布到主题的 Span 名
func SpanNamePublish(destination string) string {
	if destination == "" {
		return "mq.publish"
	}
	return "mq.publish " + destination
}
