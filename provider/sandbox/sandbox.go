// Package sandbox 提供进程内模拟的支付提供方，用于本地运行与测试。
//
// 行为由配置与脚本决定：脚本中的结果按顺序优先消费，之后按 FailureRate 随机失败。
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// 常用的脚本结果
var (
	ErrTimeout  = provider.Temporary(errors.New("sandbox: timeout"))
	ErrDeclined = provider.Permanent(errors.New("sandbox: card_declined"))
)

// Config 模拟提供方配置
type Config struct {
	Capabilities provider.Capabilities `mapstructure:"capabilities"`
	Latency      time.Duration         `mapstructure:"latency"`
	FailureRate  float64               `mapstructure:"failure_rate"`  // 0-1，随机临时失败的概率
	DeclineAbove float64               `mapstructure:"decline_above"` // 金额超过该值时永久拒绝，0 表示不启用
}

// Adapter 模拟提供方
type Adapter struct {
	name string
	cfg  Config

	mu     sync.Mutex
	seq    int
	script []error
	txns   map[string]string
	calls  int
	rnd    *rand.Rand
}

// New 创建模拟提供方
func New(name string, cfg Config) *Adapter {
	return &Adapter{
		name: name,
		cfg:  cfg,
		txns: make(map[string]string),
		rnd:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Script 追加按顺序消费的结果，nil 表示成功
func (a *Adapter) Script(results ...error) *Adapter {
	a.mu.Lock()
	a.script = append(a.script, results...)
	a.mu.Unlock()
	return a
}

// Calls 适配器被调用的次数
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Adapter) Capabilities() provider.Capabilities {
	return a.cfg.Capabilities.Clone()
}

func (a *Adapter) ProcessPayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	if a.cfg.DeclineAbove > 0 && req.Amount > a.cfg.DeclineAbove {
		a.count()
		return nil, ErrDeclined
	}
	if err := a.next(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	id := a.name + "_tx_" + strconv.Itoa(a.seq)
	a.txns[id] = "succeeded"
	return &provider.PaymentResponse{TransactionID: id, Status: "succeeded"}, nil
}

func (a *Adapter) ProcessRefund(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	if err := a.next(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.txns[req.TransactionID]; !ok {
		return nil, provider.Permanent(xerrors.Wrapf(xerrors.ErrNotFound, "sandbox: transaction %s", req.TransactionID))
	}
	a.txns[req.TransactionID] = "refunded"
	a.seq++
	return &provider.RefundResponse{RefundID: a.name + "_re_" + strconv.Itoa(a.seq), Status: "refunded"}, nil
}

func (a *Adapter) PaymentStatus(ctx context.Context, transactionID string) (*provider.StatusResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	status, ok := a.txns[transactionID]
	if !ok {
		return nil, provider.Permanent(xerrors.Wrapf(xerrors.ErrNotFound, "sandbox: transaction %s", transactionID))
	}
	return &provider.StatusResponse{TransactionID: transactionID, Status: status}, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.cfg.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Adapter) count() {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
}

// next 取出本次调用的预设结果
func (a *Adapter) next() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.script) > 0 {
		err := a.script[0]
		a.script = a.script[1:]
		return err
	}
	if a.cfg.FailureRate > 0 && a.rnd.Float64() < a.cfg.FailureRate {
		return provider.Temporary(fmt.Errorf("sandbox %s: service_unavailable", a.name))
	}
	return nil
}
