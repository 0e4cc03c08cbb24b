package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strings"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/fraud"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idem"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// ProcessPayment 编排一次支付
//
// 调用方提供 IdempotencyKey 且配置了幂等保护时，同一租户的相同键只会扣款一次：
// 重复请求直接返回首次成功的结果，处理中的重复请求返回 duplicate_request。
func (o *Orchestrator) ProcessPayment(ctx context.Context, req provider.PaymentRequest) (*Result, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = o.opts.ids.Next()
	}
	if req.IdempotencyKey == "" || o.opts.idem == nil {
		return o.processPayment(ctx, req)
	}

	key := "payment:" + req.TenantID + ":" + req.IdempotencyKey
	res, cached, err := idem.Do(ctx, o.opts.idem, key, func(ctx context.Context) (Result, error) {
		r, err := o.processPayment(ctx, req)
		if err != nil {
			return Result{}, err
		}
		return *r, nil
	})
	if err != nil {
		return nil, guardError(err)
	}
	if cached {
		res.Replayed = true
		o.opts.logger.InfoContext(clog.WithCorrelationID(ctx, req.CorrelationID), "payment replayed from idempotency cache",
			clog.String("orchestration_id", res.OrchestrationID))
	}
	return &res, nil
}

var errEmptyResponse = xerrors.New("provider returned an empty response")

// guardError 将幂等保护自身的错误映射到编排错误
func guardError(err error) error {
	var oe *Error
	if xerrors.As(err, &oe) {
		return oe
	}
	if xerrors.Is(err, idem.ErrConcurrentRequest) {
		return newError(KindDuplicateRequest, "a request with the same idempotency key is in progress", err)
	}
	return newError(KindInternal, "idempotency guard unavailable", err)
}

func (o *Orchestrator) processPayment(ctx context.Context, req provider.PaymentRequest) (*Result, error) {
	f := o.newFlow(storage.KindPayment, req.CorrelationID, req.TenantID)
	ctx = f.context(ctx)
	ctx, span := trace.StartOrchestration(ctx, trace.OrchestrationMeta{
		Kind:            string(storage.KindPayment),
		OrchestrationID: f.id,
		CorrelationID:   f.corrID,
		TenantID:        f.tenant,
	})

	res, err := o.runPayment(ctx, f, req)

	out := outcome{Amount: req.Amount, Currency: req.Currency, Err: err}
	if res != nil {
		out.Success = res.Success
		out.Provider = res.Provider
		out.TransactionID = res.ProviderTransactionID
	}
	f.finish(ctx, out)
	trace.EndSpan(span, string(f.state), err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) runPayment(ctx context.Context, f *flow, req provider.PaymentRequest) (*Result, error) {
	o.opts.logger.InfoContext(ctx, "payment orchestration started",
		clog.Float64("amount", req.Amount),
		clog.String("currency", req.Currency),
		clog.String("country", req.Country),
		clog.String("payment_method", req.PaymentMethod))

	tenant := o.tenant(req.TenantID)

	// VALIDATING
	if err := o.validatePayment(req, tenant.MaxAmount); err != nil {
		return nil, f.reject(ctx, err)
	}
	if err := f.transition(ctx, EventValidated); err != nil {
		return nil, err
	}

	// FRAUD_CHECK
	assessment, err := o.opts.fraud.Assess(ctx, req)
	if err != nil {
		return nil, f.reject(ctx, newError(KindInternal, "fraud check unavailable", err))
	}
	if assessment.Level == fraud.LevelHigh {
		return nil, f.reject(ctx, newError(KindFraudBlocked, "payment blocked by fraud check: "+assessment.Reason(), nil))
	}
	if assessment.Level == fraud.LevelMedium {
		o.opts.logger.WarnContext(ctx, "medium fraud risk, continuing",
			clog.Float64("score", assessment.Score), clog.String("reason", assessment.Reason()))
	}
	if err := f.transition(ctx, EventPassed); err != nil {
		return nil, err
	}

	// COMPLIANCE_CHECK
	verdict, err := o.opts.compliance.Validate(ctx, req, tenant)
	if err != nil {
		return nil, f.reject(ctx, newError(KindInternal, "compliance check unavailable", err))
	}
	if !verdict.Compliant {
		return nil, f.reject(ctx, newError(KindComplianceViolation,
			"compliance check failed: "+strings.Join(verdict.Violations, "; "), nil))
	}
	if err := f.transition(ctx, EventPassed); err != nil {
		return nil, err
	}

	// ROUTING
	candidates := o.router.Route(req.Country, req.Currency, req.PaymentMethod, req.Amount, tenant.ProviderPreference)
	if len(candidates) == 0 {
		if err := f.transition(ctx, EventNoCandidates); err != nil {
			return nil, err
		}
		return nil, newError(KindAllCandidatesExhausted, "no eligible provider", nil)
	}
	o.opts.logger.DebugContext(ctx, "candidates routed", clog.Any("candidates", candidates))
	if err := f.transition(ctx, EventRouted); err != nil {
		return nil, err
	}

	// ATTEMPTING
	res, err := o.attemptCandidates(ctx, f, req, candidates)
	if res != nil {
		res.Fraud = assessment
	}
	return res, err
}

// reject 前置检查失败，进入 REJECTED
func (f *flow) reject(ctx context.Context, err error) error {
	if terr := f.transition(ctx, EventRejected); terr != nil {
		return terr
	}
	return err
}

func (o *Orchestrator) validatePayment(req provider.PaymentRequest, tenantMax float64) error {
	var missing []string
	if strings.TrimSpace(req.Currency) == "" {
		missing = append(missing, "currency")
	}
	if strings.TrimSpace(req.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		missing = append(missing, "payment_method")
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
	ceiling := o.cfg.MaxAmount
	if tenantMax > 0 {
		ceiling = tenantMax
	}
	if req.Amount > ceiling {
		return newError(KindValidation, fmt.Sprintf("amount exceeds the limit of %.2f", ceiling), nil)
	}
	return nil
}

// attemptCandidates 按顺序尝试候选提供方
func (o *Orchestrator) attemptCandidates(ctx context.Context, f *flow, req provider.PaymentRequest, candidates []string) (*Result, error) {
	var lastErr error

	for i, name := range candidates {
		if i > 0 {
			if err := f.transition(ctx, EventNextCandidate); err != nil {
				return nil, err
			}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attemptNo := i + 1
		adapter, ok := o.registry.Adapter(name)
		if !ok {
			continue
		}

		done, err := o.breaker.Allow(name)
		if err != nil {
			o.opts.logger.InfoContext(ctx, "provider skipped, circuit open", clog.String("provider", name))
			f.recordAttempt(ctx, storage.AttemptRecord{
				Provider:      name,
				AttemptNumber: attemptNo,
				StartedAt:     o.opts.now(),
				Outcome:       storage.OutcomeSkippedCircuitOpen,
				ErrorMessage:  err.Error(),
			})
			lastErr = err
			continue
		}

		// 每个提供方使用独立的幂等键，提供方侧可以识别同一次尝试的重试
		attemptReq := req
		attemptReq.IdempotencyKey = f.id + ":" + name
		attemptReq.Metadata = maps.Clone(req.Metadata)

		resp, outcome, tries, err := o.attemptOne(ctx, f, adapter, name, attemptNo, attemptReq, done)
		switch outcome {
		case storage.OutcomeSuccess:
			o.indexTransaction(resp.TransactionID, name)
			if terr := f.transition(ctx, EventSucceeded); terr != nil {
				return nil, terr
			}
			return &Result{
				Success:               true,
				Provider:              name,
				ProviderTransactionID: resp.TransactionID,
				Status:                resp.Status,
				ProcessingTimeMs:      f.elapsed().Milliseconds(),
				OrchestrationID:       f.id,
				CorrelationID:         f.corrID,
			}, nil
		case storage.OutcomePermanentFailure:
			if terr := f.transition(ctx, EventHalted); terr != nil {
				return nil, terr
			}
			return nil, newError(KindProviderPermanent,
				fmt.Sprintf("payment rejected by %s: %v", name, err), err)
		default:
			o.opts.logger.WarnContext(ctx, "provider failed temporarily, failing over",
				clog.String("provider", name), clog.Int("tries", tries), clog.Error(err))
			lastErr = err
		}
	}

	if err := f.transition(ctx, EventExhausted); err != nil {
		return nil, err
	}
	msg := "all candidate providers failed"
	if lastErr != nil {
		msg += ": " + lastErr.Error()
	}
	return nil, newError(KindAllCandidatesExhausted, msg, lastErr)
}

// attemptOne 通过重试执行器调用一个提供方，并更新熔断器与性能反馈
func (o *Orchestrator) attemptOne(
	ctx context.Context,
	f *flow,
	adapter provider.Adapter,
	name string,
	attemptNo int,
	req provider.PaymentRequest,
	done breaker.Done,
) (*provider.PaymentResponse, storage.Outcome, int, error) {
	ctx, span := trace.StartAttempt(ctx, name, attemptNo)
	started := o.opts.now()

	var (
		resp     *provider.PaymentResponse
		lastCall time.Duration
	)
	res, err := o.opts.retry.Attempt(ctx, func(ctx context.Context) error {
		callStart := o.opts.now()
		r, err := adapter.ProcessPayment(ctx, req)
		lastCall = o.opts.now().Sub(callStart)
		if err != nil {
			return err
		}
		if r == nil {
			return provider.Temporary(errEmptyResponse)
		}
		resp = r
		return nil
	})
	duration := o.opts.now().Sub(started)

	outcome := storage.OutcomeSuccess
	switch {
	case err == nil:
	case res.Temporary:
		outcome = storage.OutcomeTemporaryFailure
	default:
		outcome = storage.OutcomePermanentFailure
	}

	if err != nil && xerrors.Is(ctx.Err(), context.Canceled) {
		// 调用方取消，提供方没有给出结论，不计入熔断与性能反馈
		o.release(ctx, name, done)
	} else {
		o.settle(ctx, name, done, err == nil)
		o.opts.feedback.Observe(ctx, name, err == nil, lastCall)
	}

	rec := storage.AttemptRecord{
		Provider:      name,
		AttemptNumber: attemptNo,
		Tries:         res.Tries,
		StartedAt:     started,
		DurationMs:    duration.Milliseconds(),
		Outcome:       outcome,
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	f.recordAttempt(ctx, rec)
	trace.EndSpan(span, string(outcome), err)

	return resp, outcome, res.Tries, err
}

// release 放弃一次没有结论的尝试；HALF_OPEN 的探测名额必须归还，按失败处理
func (o *Orchestrator) release(ctx context.Context, name string, done breaker.Done) {
	if o.breaker.State(name) == breaker.StateHalfOpen {
		done(false)
	}
	o.opts.logger.InfoContext(ctx, "attempt abandoned, caller cancelled", clog.String("provider", name))
}

// settle 上报熔断结果，熔断器因此打开时发布事件
func (o *Orchestrator) settle(ctx context.Context, name string, done breaker.Done, success bool) {
	before := o.breaker.State(name)
	done(success)
	if success || before == breaker.StateOpen || o.breaker.State(name) != breaker.StateOpen {
		return
	}
	o.publish(context.WithoutCancel(ctx), notify.Event{
		Type:       notify.EventBreakerOpened,
		Provider:   name,
		OccurredAt: o.opts.now(),
	})
}
