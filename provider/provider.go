// Package provider 定义支付提供方的适配器契约、能力模型与提供方注册表。
//
// 每个外部支付提供方（stripe、adyen、paypal……）通过实现 Adapter 接入，
// 注册到 Registry 后才会被路由器考虑。Registry 同时保存每个提供方的
// 性能快照（成功率与平均延迟的 EMA），只有 feedback 包会写入这些字段。
package provider

import (
	"context"
	"time"
)

// Global 能力集合中的通配值，表示接受任意币种、国家或支付方式
const Global = "global"

// PaymentRequest 一次支付请求
//
// 进入编排器后不可修改；编排器给每个候选提供方传递一份副本，
// 副本的 IdempotencyKey 被替换为 "<orchestrationID>:<provider>"。
type PaymentRequest struct {
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	Country        string            `json:"country"`
	PaymentMethod  string            `json:"payment_method"`
	TenantID       string            `json:"tenant_id"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PaymentResponse 提供方对扣款的响应
type PaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// RefundRequest 对已成功交易的退款请求
//
// Provider 为空时由编排器通过交易索引解析。
type RefundRequest struct {
	Provider       string  `json:"provider,omitempty"`
	TransactionID  string  `json:"transaction_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	TenantID       string  `json:"tenant_id"`
	CorrelationID  string  `json:"correlation_id,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// RefundResponse 提供方对退款的响应
type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// StatusResponse 交易状态查询结果
type StatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Adapter 外部支付提供方适配器
//
// 超时由适配器自己负责；返回的错误可以用 Temporary / Permanent 标记分类，
// 未标记的错误按消息内容分类（见 retry 包）。
type Adapter interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	PaymentStatus(ctx context.Context, transactionID string) (*StatusResponse, error)
	Capabilities() Capabilities
}

// Performance 提供方的性能快照
type Performance struct {
	// SuccessRate 成功率 EMA，范围 0-100
	SuccessRate float64 `json:"success_rate"`
	// AverageLatencyMs 平均延迟 EMA（毫秒）
	AverageLatencyMs float64 `json:"average_latency_ms"`
	// Observations 已观测的次数，为 0 时延迟尚未被首次观测初始化
	Observations uint64    `json:"observations"`
	LastUpdated  time.Time `json:"last_updated"`
}

// InitialPerformance 新注册提供方的性能快照
func InitialPerformance() Performance {
	return Performance{SuccessRate: 100}
}

// Record 注册表中的提供方记录
type Record struct {
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
	Performance  Performance  `json:"performance"`
	Adapter      Adapter      `json:"-"`
}
