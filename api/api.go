// Package api 以 HTTP 暴露支付编排能力。
//
// 路由：
//
//	POST /v1/payments                    发起支付
//	POST /v1/refunds                     发起退款
//	GET  /v1/payments/:provider/:id      查询交易状态
//	GET  /v1/providers/health            提供方健康视图
//	GET  /v1/orchestrations/:id          编排日志与逐次尝试的审计记录
//	GET  /healthz                        存活检查
//
// 请求头 Idempotency-Key 映射为调用方幂等键，X-Correlation-ID 映射为关联 ID；
// 未携带关联 ID 时由服务端生成，并在响应头中回写。
package api

import (
	"context"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/orchestrator"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderCorrelationID  = "X-Correlation-ID"
)

// Service 编排能力，由 *orchestrator.Orchestrator 实现
type Service interface {
	ProcessPayment(ctx context.Context, req provider.PaymentRequest) (*orchestrator.Result, error)
	ProcessRefund(ctx context.Context, req provider.RefundRequest) (*orchestrator.RefundResult, error)
	PaymentStatus(ctx context.Context, providerName, transactionID string) (*provider.StatusResponse, error)
	ProviderHealth() map[string]orchestrator.Health
}

// paymentBody POST /v1/payments 请求体
type paymentBody struct {
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Country       string            `json:"country"`
	PaymentMethod string            `json:"payment_method"`
	TenantID      string            `json:"tenant_id"`
	Metadata      map[string]string `json:"metadata"`
}

// refundBody POST /v1/refunds 请求体
type refundBody struct {
	Provider      string  `json:"provider"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Reason        string  `json:"reason"`
	TenantID      string  `json:"tenant_id"`
}

// errorBody 错误响应
type errorBody struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
