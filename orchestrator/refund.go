package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idem"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/retry"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// ProcessRefund 对已成功的交易退款
//
// 退款只能由原交易的提供方处理：熔断打开时直接失败，不切换提供方，也不重试。
func (o *Orchestrator) ProcessRefund(ctx context.Context, req provider.RefundRequest) (*RefundResult, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = o.opts.ids.Next()
	}
	if req.IdempotencyKey == "" || o.opts.idem == nil {
		return o.processRefund(ctx, req)
	}

	key := "refund:" + req.TenantID + ":" + req.IdempotencyKey
	res, cached, err := idem.Do(ctx, o.opts.idem, key, func(ctx context.Context) (RefundResult, error) {
		r, err := o.processRefund(ctx, req)
		if err != nil {
			return RefundResult{}, err
		}
		return *r, nil
	})
	if err != nil {
		return nil, guardError(err)
	}
	res.Replayed = cached
	return &res, nil
}

func (o *Orchestrator) processRefund(ctx context.Context, req provider.RefundRequest) (*RefundResult, error) {
	f := o.newFlow(storage.KindRefund, req.CorrelationID, req.TenantID)
	ctx = f.context(ctx)
	ctx, span := trace.StartOrchestration(ctx, trace.OrchestrationMeta{
		Kind:            string(storage.KindRefund),
		OrchestrationID: f.id,
		CorrelationID:   f.corrID,
		TenantID:        f.tenant,
	})

	res, err := o.runRefund(ctx, f, req)

	out := outcome{Amount: req.Amount, Currency: req.Currency, Err: err}
	if res != nil {
		out.Success = true
		out.Provider = res.Provider
		out.TransactionID = res.TransactionID
	} else if req.Provider != "" {
		out.Provider = req.Provider
	}
	f.finish(ctx, out)
	trace.EndSpan(span, string(f.state), err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) runRefund(ctx context.Context, f *flow, req provider.RefundRequest) (*RefundResult, error) {
	o.opts.logger.InfoContext(ctx, "refund orchestration started",
		clog.String("transaction_id", req.TransactionID),
		clog.Float64("amount", req.Amount))

	if err := validateRefund(req); err != nil {
		return nil, f.reject(ctx, err)
	}
	name, err := o.resolveProvider(req.Provider, req.TransactionID)
	if err != nil {
		return nil, f.reject(ctx, err)
	}
	adapter, ok := o.registry.Adapter(name)
	if !ok {
		return nil, f.reject(ctx, newError(KindValidation, fmt.Sprintf("provider %s is not registered", name), nil))
	}
	if err := f.transition(ctx, EventResolved); err != nil {
		return nil, err
	}

	done, err := o.breaker.Allow(name)
	if err != nil {
		f.recordAttempt(ctx, storage.AttemptRecord{
			Provider:      name,
			AttemptNumber: 1,
			StartedAt:     o.opts.now(),
			Outcome:       storage.OutcomeSkippedCircuitOpen,
			ErrorMessage:  err.Error(),
		})
		if terr := f.transition(ctx, EventHalted); terr != nil {
			return nil, terr
		}
		return nil, newError(KindCircuitOpen, fmt.Sprintf("provider %s is unavailable, circuit open", name), err)
	}

	attemptReq := req
	attemptReq.Provider = name
	attemptReq.IdempotencyKey = f.id + ":" + name

	actx, span := trace.StartAttempt(ctx, name, 1)
	started := o.opts.now()
	resp, err := adapter.ProcessRefund(actx, attemptReq)
	if err == nil && resp == nil {
		err = provider.Temporary(errEmptyResponse)
	}
	latency := o.opts.now().Sub(started)

	o.settle(ctx, name, done, err == nil)
	o.opts.feedback.Observe(ctx, name, err == nil, latency)

	rec := storage.AttemptRecord{
		Provider:      name,
		AttemptNumber: 1,
		Tries:         1,
		StartedAt:     started,
		DurationMs:    latency.Milliseconds(),
		Outcome:       storage.OutcomeSuccess,
	}
	kind := KindProviderPermanent
	if err != nil {
		rec.ErrorMessage = err.Error()
		rec.Outcome = storage.OutcomePermanentFailure
		if retry.IsTemporary(err) {
			rec.Outcome = storage.OutcomeTemporaryFailure
			kind = KindProviderTemporary
		}
	}
	f.recordAttempt(ctx, rec)
	trace.EndSpan(span, string(rec.Outcome), err)

	if err != nil {
		if terr := f.transition(ctx, EventHalted); terr != nil {
			return nil, terr
		}
		return nil, newError(kind, fmt.Sprintf("refund failed at %s: %v", name, err), err)
	}
	if terr := f.transition(ctx, EventSucceeded); terr != nil {
		return nil, terr
	}
	return &RefundResult{
		Success:          true,
		Provider:         name,
		TransactionID:    req.TransactionID,
		RefundID:         resp.RefundID,
		Status:           resp.Status,
		ProcessingTimeMs: f.elapsed().Milliseconds(),
		OrchestrationID:  f.id,
		CorrelationID:    f.corrID,
	}, nil
}

func validateRefund(req provider.RefundRequest) error {
	var missing []string
	if strings.TrimSpace(req.TransactionID) == "" {
		missing = append(missing, "transaction_id")
	}
	if strings.TrimSpace(req.TenantID) == "" {
		missing = append(missing, "tenant_id")
	}
	if len(missing) > 0 {
		return newError(KindValidation, "missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return newError(KindValidation, "amount must be greater than zero", nil)
	}
	return nil
}

// resolveProvider 显式指定优先，否则查询交易索引
func (o *Orchestrator) resolveProvider(explicit, transactionID string) (string, error) {
	if explicit != "" {
		if _, ok := o.registry.Get(explicit); !ok {
			return "", newError(KindValidation, fmt.Sprintf("provider %s is not registered", explicit), nil)
		}
		return explicit, nil
	}
	if name, ok := o.lookupTransaction(transactionID); ok {
		return name, nil
	}
	return "", newError(KindValidation,
		fmt.Sprintf("cannot determine provider for transaction %s, specify provider explicitly", transactionID), nil)
}

// PaymentStatus 向交易所属的提供方查询状态，providerName 为空时查询交易索引
//
// 查询不经过熔断器，也不计入性能反馈。
func (o *Orchestrator) PaymentStatus(ctx context.Context, providerName, transactionID string) (*provider.StatusResponse, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, newError(KindValidation, "missing required fields: transaction_id", nil)
	}
	if providerName == "" {
		name, ok := o.lookupTransaction(transactionID)
		if !ok {
			return nil, newError(KindNotFound, fmt.Sprintf("transaction %s is unknown", transactionID), nil)
		}
		providerName = name
	}
	adapter, ok := o.registry.Adapter(providerName)
	if !ok {
		return nil, newError(KindNotFound, fmt.Sprintf("provider %s is not registered", providerName), nil)
	}

	resp, err := adapter.PaymentStatus(ctx, transactionID)
	switch {
	case err == nil && resp != nil:
		return resp, nil
	case err == nil:
		return nil, newError(KindProviderTemporary, errEmptyResponse.Error(), nil)
	case xerrors.Is(err, xerrors.ErrNotFound):
		return nil, newError(KindNotFound, fmt.Sprintf("transaction %s not found at %s", transactionID, providerName), err)
	case retry.IsTemporary(err):
		return nil, newError(KindProviderTemporary, fmt.Sprintf("status query failed at %s: %v", providerName, err), err)
	default:
		return nil, newError(KindProviderPermanent, fmt.Sprintf("status query failed at %s: %v", providerName, err), err)
	}
}
