// Package notify 在编排结束后发布领域事件。
//
// 发布失败只记录日志，不影响支付结果；事件是尽力而为的通知。
package notify

import (
	"context"
	"sync"
	"time"
)

// EventType 事件类型
type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventRefundSucceeded  EventType = "refund.succeeded"
	EventRefundFailed     EventType = "refund.failed"
	EventBreakerOpened    EventType = "breaker.opened"
)

// Event 领域事件
type Event struct {
	Type            EventType `json:"type" msgpack:"type"`
	OrchestrationID string    `json:"orchestration_id,omitempty" msgpack:"orchestration_id,omitempty"`
	CorrelationID   string    `json:"correlation_id,omitempty" msgpack:"correlation_id,omitempty"`
	TenantID        string    `json:"tenant_id,omitempty" msgpack:"tenant_id,omitempty"`
	Provider        string    `json:"provider,omitempty" msgpack:"provider,omitempty"`
	TransactionID   string    `json:"transaction_id,omitempty" msgpack:"transaction_id,omitempty"`
	Amount          float64   `json:"amount,omitempty" msgpack:"amount,omitempty"`
	Currency        string    `json:"currency,omitempty" msgpack:"currency,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty" msgpack:"error_kind,omitempty"`
	OccurredAt      time.Time `json:"occurred_at" msgpack:"occurred_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Discard 返回丢弃所有事件的 Publisher
func Discard() Publisher { return discard{} }

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
func (discard) Close() error                         { return nil }

// Recorder 在内存中记录事件，用于本地运行与测试
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder 创建 Recorder
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events 返回已记录事件的副本
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
