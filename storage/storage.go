// Package storage 保存编排过程的审计记录：每次提供方尝试一条 AttemptRecord，
// 每次编排结束一条 OrchestrationLog。记录只追加，不更新也不删除。
//
// 后端：
//   - memory：进程内切片，用于本地运行与测试
//   - sqlite / mysql：基于 GORM，可选 OpenTelemetry 追踪
package storage

import (
	"context"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Outcome 单次尝试的结果
type Outcome string

const (
	OutcomeSuccess            Outcome = "SUCCESS"
	OutcomeTemporaryFailure   Outcome = "TEMPORARY_FAILURE"
	OutcomePermanentFailure   Outcome = "PERMANENT_FAILURE"
	OutcomeSkippedCircuitOpen Outcome = "SKIPPED_CIRCUIT_OPEN"
)

// Kind 编排类型
type Kind string

const (
	KindPayment Kind = "payment"
	KindRefund  Kind = "refund"
)

// AttemptRecord 一次候选提供方尝试
type AttemptRecord struct {
	OrchestrationID string    `json:"orchestration_id"`
	Provider        string    `json:"provider"`
	AttemptNumber   int       `json:"attempt_number"` // 候选列表中的位置，从 1 开始
	Tries           int       `json:"tries"`          // 重试执行器实际调用适配器的次数
	StartedAt       time.Time `json:"started_at"`
	DurationMs      int64     `json:"duration_ms"`
	Outcome         Outcome   `json:"outcome"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// OrchestrationLog 一次编排的最终结果
type OrchestrationLog struct {
	OrchestrationID       string    `json:"orchestration_id"`
	CorrelationID         string    `json:"correlation_id"`
	TenantID              string    `json:"tenant_id"`
	Kind                  Kind      `json:"kind"`
	State                 string    `json:"state"`
	Success               bool      `json:"success"`
	Provider              string    `json:"provider,omitempty"`
	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	ErrorKind             string    `json:"error_kind,omitempty"`
	ErrorMessage          string    `json:"error_message,omitempty"`
	Amount                float64   `json:"amount"`
	Currency              string    `json:"currency"`
	ProcessingTimeMs      int64     `json:"processing_time_ms"`
	CreatedAt             time.Time `json:"created_at"`
}

// Storage 审计记录的写入端，编排器只依赖该接口
type Storage interface {
	AppendAttempt(ctx context.Context, rec AttemptRecord) error
	AppendOrchestrationLog(ctx context.Context, log OrchestrationLog) error
}

// Reader 审计记录的查询端
type Reader interface {
	// Attempts 按 AttemptNumber 升序返回一次编排的所有尝试
	Attempts(ctx context.Context, orchestrationID string) ([]AttemptRecord, error)
	// Orchestration 查询编排结果，不存在返回 ErrNotFound
	Orchestration(ctx context.Context, orchestrationID string) (*OrchestrationLog, error)
}

// Store 同时具备读写能力的后端
type Store interface {
	Storage
	Reader
	Close() error
}

// ErrNotFound 记录不存在
var ErrNotFound = xerrors.Wrap(xerrors.ErrNotFound, "storage: record not found")

// ErrDuplicate 同一编排 ID 的结果已写入
var ErrDuplicate = xerrors.Wrap(xerrors.ErrConflict, "storage: orchestration log already exists")

// ErrUnsupportedDriver 未知的存储驱动
var ErrUnsupportedDriver = xerrors.Wrap(xerrors.ErrInvalidInput, "storage: unsupported driver")
