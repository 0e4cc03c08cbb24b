package orchestrator

import (
	"context"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
)

// flow 一次编排调用的状态，不在调用之间共享
type flow struct {
	o       *Orchestrator
	kind    storage.Kind
	id      string
	corrID  string
	tenant  string
	state   State
	started time.Time
}

func (o *Orchestrator) newFlow(kind storage.Kind, correlationID, tenantID string) *flow {
	return &flow{
		o:       o,
		kind:    kind,
		id:      o.opts.ids.Next(),
		corrID:  correlationID,
		tenant:  tenantID,
		state:   StateValidating,
		started: o.opts.now(),
	}
}

// context 将编排标识写入 ctx，日志自动携带
func (f *flow) context(ctx context.Context) context.Context {
	ctx = clog.WithOrchestrationID(ctx, f.id)
	ctx = clog.WithCorrelationID(ctx, f.corrID)
	return clog.WithTenantID(ctx, f.tenant)
}

// transition 执行状态转换并记录日志；非法转换属于编程错误
func (f *flow) transition(ctx context.Context, e Event) error {
	to, err := next(f.state, e)
	if err != nil {
		f.o.opts.logger.ErrorContext(ctx, "illegal transition",
			clog.String("state", string(f.state)), clog.String("event", string(e)))
		return newError(KindInternal, "orchestration reached an inconsistent state", err)
	}
	f.o.opts.logger.DebugContext(ctx, "state transition",
		clog.String("from", string(f.state)),
		clog.String("event", string(e)),
		clog.String("to", string(to)))
	f.state = to
	return nil
}

func (f *flow) elapsed() time.Duration {
	return f.o.opts.now().Sub(f.started)
}

// recordAttempt 写入审计记录，失败只记录日志
func (f *flow) recordAttempt(ctx context.Context, rec storage.AttemptRecord) {
	rec.OrchestrationID = f.id
	f.o.inst.recordAttempt(ctx, rec.Provider, rec.Outcome, time.Duration(rec.DurationMs)*time.Millisecond)
	if err := f.o.opts.storage.AppendAttempt(context.WithoutCancel(ctx), rec); err != nil {
		f.o.opts.logger.ErrorContext(ctx, "append attempt record failed",
			clog.String("provider", rec.Provider), clog.Error(err))
	}
}

// outcome 编排日志与事件共用的结果描述
type outcome struct {
	Success       bool
	Provider      string
	TransactionID string
	Amount        float64
	Currency      string
	Err           error
}

// finish 写入编排日志、发布事件并计数，全部尽力而为
func (f *flow) finish(ctx context.Context, out outcome) {
	ctx = context.WithoutCancel(ctx)
	log := storage.OrchestrationLog{
		OrchestrationID:       f.id,
		CorrelationID:         f.corrID,
		TenantID:              f.tenant,
		Kind:                  f.kind,
		State:                 string(f.state),
		Success:               out.Success,
		Provider:              out.Provider,
		ProviderTransactionID: out.TransactionID,
		Amount:                out.Amount,
		Currency:              out.Currency,
		ProcessingTimeMs:      f.elapsed().Milliseconds(),
		CreatedAt:             f.o.opts.now(),
	}
	label := "success"
	if out.Err != nil {
		kind := KindOf(out.Err)
		log.ErrorKind = string(kind)
		log.ErrorMessage = out.Err.Error()
		label = string(kind)
	}
	if err := f.o.opts.storage.AppendOrchestrationLog(ctx, log); err != nil {
		f.o.opts.logger.ErrorContext(ctx, "append orchestration log failed", clog.Error(err))
	}
	f.o.inst.recordOrchestration(ctx, f.kind, label)

	evt := notify.Event{
		OrchestrationID: f.id,
		CorrelationID:   f.corrID,
		TenantID:        f.tenant,
		Provider:        out.Provider,
		TransactionID:   out.TransactionID,
		Amount:          out.Amount,
		Currency:        out.Currency,
		ErrorKind:       log.ErrorKind,
		OccurredAt:      log.CreatedAt,
	}
	switch {
	case f.kind == storage.KindRefund && out.Success:
		evt.Type = notify.EventRefundSucceeded
	case f.kind == storage.KindRefund:
		evt.Type = notify.EventRefundFailed
	case out.Success:
		evt.Type = notify.EventPaymentSucceeded
	default:
		evt.Type = notify.EventPaymentFailed
	}
	f.o.publish(ctx, evt)

	fields := []clog.Field{
		clog.String("state", string(f.state)),
		clog.Int64("processing_time_ms", log.ProcessingTimeMs),
	}
	if out.Provider != "" {
		fields = append(fields, clog.String("provider", out.Provider))
	}
	if out.Err != nil {
		f.o.opts.logger.WarnContext(ctx, "orchestration failed", append(fields, clog.Error(out.Err))...)
		return
	}
	f.o.opts.logger.InfoContext(ctx, "orchestration succeeded", fields...)
}

func (o *Orchestrator) publish(ctx context.Context, evt notify.Event) {
	if err := o.opts.publisher.Publish(ctx, evt); err != nil {
		o.opts.logger.WarnContext(ctx, "publish event failed",
			clog.String("type", string(evt.Type)), clog.Error(err))
	}
}
