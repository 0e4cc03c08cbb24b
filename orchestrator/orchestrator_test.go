package orchestrator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/fraud"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idem"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider/sandbox"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/retry"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/router"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
)

// instantTimer 立即触发，跳过退避等待
type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}
func (t *instantTimer) Stop()                  {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

type fixture struct {
	orch      *Orchestrator
	registry  *provider.Registry
	breaker   breaker.Breaker
	store     storage.Store
	events    *notify.Recorder
	providers map[string]*sandbox.Adapter
}

var usdCard = provider.Capabilities{
	Currencies:     []string{"USD", "EUR"},
	PaymentMethods: []string{"card"},
	Countries:      []string{provider.Global},
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	brk, err := breaker.New(&breaker.Config{FailureThreshold: 5, Cooldown: time.Minute})
	require.NoError(t, err)
	reg := provider.NewRegistry(provider.WithBreaker(brk))

	f := &fixture{
		registry:  reg,
		breaker:   brk,
		store:     storage.NewMemory(),
		events:    notify.NewRecorder(),
		providers: make(map[string]*sandbox.Adapter),
	}
	for _, name := range []string{"stripe", "paypal", "adyen"} {
		a := sandbox.New(name, sandbox.Config{Capabilities: usdCard})
		require.NoError(t, reg.Register(name, a, usdCard))
		f.providers[name] = a
	}

	rt := router.New(reg, router.Table{
		Regions: map[string]router.Tiers{
			"US": {Primary: []string{"stripe"}, Regional: []string{"paypal"}, Fallback: []string{"adyen"}},
		},
		Default: []string{"adyen", "stripe"},
	})

	exec := retry.New(nil, retry.WithTimer(func() backoff.Timer { return &instantTimer{} }))
	base := []Option{
		WithStorage(f.store),
		WithPublisher(f.events),
		WithRetry(exec),
	}
	f.orch, err = New(reg, brk, rt, &Config{MaxAmount: 10000}, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *fixture) lastEvent(t *testing.T) notify.Event {
	t.Helper()
	events := f.events.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func (f *fixture) attempts(t *testing.T, orchestrationID string) []storage.AttemptRecord {
	t.Helper()
	recs, err := f.store.Attempts(context.Background(), orchestrationID)
	require.NoError(t, err)
	return recs
}

func payment(amount float64) provider.PaymentRequest {
	return provider.PaymentRequest{
		Amount:        amount,
		Currency:      "USD",
		Country:       "US",
		PaymentMethod: "card",
		TenantID:      "acme",
	}
}

func TestPaymentSucceedsOnPrimary(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "stripe", res.Provider)
	assert.Equal(t, "stripe_tx_1", res.ProviderTransactionID)
	assert.NotEmpty(t, res.OrchestrationID)
	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, fraud.LevelLow, res.Fraud.Level)

	recs := f.attempts(t, res.OrchestrationID)
	require.Len(t, recs, 1)
	assert.Equal(t, storage.OutcomeSuccess, recs[0].Outcome)
	assert.Equal(t, 1, recs[0].Tries)

	log, err := f.store.Orchestration(context.Background(), res.OrchestrationID)
	require.NoError(t, err)
	assert.Equal(t, string(StateSucceeded), log.State)
	assert.True(t, log.Success)

	evt := f.lastEvent(t)
	assert.Equal(t, notify.EventPaymentSucceeded, evt.Type)
	assert.Equal(t, "stripe_tx_1", evt.TransactionID)
}

func TestPaymentFailoverSkipsOpenAndTemporary(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.breaker.RecordOutcome("stripe", false)
	}
	require.True(t, f.breaker.IsOpen("stripe"))
	f.providers["paypal"].Script(sandbox.ErrTimeout, sandbox.ErrTimeout, sandbox.ErrTimeout)

	res, err := f.orch.ProcessPayment(context.Background(), payment(250))
	require.NoError(t, err)
	assert.Equal(t, "adyen", res.Provider)

	assert.Zero(t, f.providers["stripe"].Calls())
	assert.Equal(t, 3, f.providers["paypal"].Calls())
	assert.Equal(t, 1, f.providers["adyen"].Calls())

	recs := f.attempts(t, res.OrchestrationID)
	require.Len(t, recs, 3)
	assert.Equal(t, "stripe", recs[0].Provider)
	assert.Equal(t, storage.OutcomeSkippedCircuitOpen, recs[0].Outcome)
	assert.Equal(t, "paypal", recs[1].Provider)
	assert.Equal(t, storage.OutcomeTemporaryFailure, recs[1].Outcome)
	assert.Equal(t, 3, recs[1].Tries)
	assert.Contains(t, recs[1].ErrorMessage, "timeout")
	assert.Equal(t, "adyen", recs[2].Provider)
	assert.Equal(t, storage.OutcomeSuccess, recs[2].Outcome)

	// 三次重试只计一次熔断失败
	snap, ok := f.breaker.Snapshot("paypal")
	require.True(t, ok)
	assert.Equal(t, uint32(1), snap.ConsecutiveFailures)

	perf, ok := f.registry.Snapshot("paypal")
	require.True(t, ok)
	assert.InDelta(t, 90, perf.SuccessRate, 1e-9)
	adyen, _ := f.registry.Snapshot("adyen")
	assert.InDelta(t, 100, adyen.SuccessRate, 1e-9)
	assert.Equal(t, uint64(1), adyen.Observations)
	adyenBreaker, ok := f.breaker.Snapshot("adyen")
	require.True(t, ok)
	assert.Zero(t, adyenBreaker.ConsecutiveFailures)

	health := f.orch.ProviderHealth()
	assert.Equal(t, breaker.StateOpen, health["stripe"].BreakerState)
	assert.InDelta(t, 90, health["paypal"].SuccessRate, 1e-9)
}

func TestPaymentFraudHighRejectsWithoutAttempts(t *testing.T) {
	gate := fraud.GateFunc(func(context.Context, provider.PaymentRequest) (fraud.Assessment, error) {
		return fraud.Assessment{Level: fraud.LevelHigh, Score: 0.95, Reasons: []string{"velocity limit exceeded"}}, nil
	})
	f := newFixture(t, WithFraudGate(gate))

	_, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.ErrorIs(t, err, ErrFraudBlocked)
	assert.Contains(t, err.Error(), "velocity limit exceeded")
	for _, a := range f.providers {
		assert.Zero(t, a.Calls())
	}

	evt := f.lastEvent(t)
	assert.Equal(t, notify.EventPaymentFailed, evt.Type)
	assert.Equal(t, string(KindFraudBlocked), evt.ErrorKind)
	assert.Empty(t, f.attempts(t, evt.OrchestrationID))

	log, err := f.store.Orchestration(context.Background(), evt.OrchestrationID)
	require.NoError(t, err)
	assert.Equal(t, string(StateRejected), log.State)
}

func TestPaymentFraudMediumProceeds(t *testing.T) {
	gate := fraud.NewRuleGate(fraud.Config{ReviewAmount: 500}, nil)
	f := newFixture(t, WithFraudGate(gate))

	res, err := f.orch.ProcessPayment(context.Background(), payment(600))
	require.NoError(t, err)
	assert.Equal(t, fraud.LevelMedium, res.Fraud.Level)
}

func TestPaymentComplianceViolation(t *testing.T) {
	f := newFixture(t)
	f.orch.SetTenants(map[string]compliance.TenantConfig{
		"acme": {AllowedCurrencies: []string{"EUR"}},
	})

	_, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.ErrorIs(t, err, ErrComplianceViolation)
	assert.Contains(t, err.Error(), "currency USD is not allowed")
	assert.Zero(t, f.providers["stripe"].Calls())
}

func TestPaymentPermanentFailureHalts(t *testing.T) {
	f := newFixture(t)
	f.providers["stripe"].Script(sandbox.ErrDeclined)

	_, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.ErrorIs(t, err, ErrProviderPermanent)
	assert.Contains(t, err.Error(), "card_declined")

	assert.Equal(t, 1, f.providers["stripe"].Calls())
	assert.Zero(t, f.providers["paypal"].Calls())
	assert.Zero(t, f.providers["adyen"].Calls())

	evt := f.lastEvent(t)
	recs := f.attempts(t, evt.OrchestrationID)
	require.Len(t, recs, 1)
	assert.Equal(t, storage.OutcomePermanentFailure, recs[0].Outcome)

	log, err := f.store.Orchestration(context.Background(), evt.OrchestrationID)
	require.NoError(t, err)
	assert.Equal(t, string(StateAllFailed), log.State)
	assert.Equal(t, string(KindProviderPermanent), log.ErrorKind)
}

func TestPaymentAllCandidatesExhausted(t *testing.T) {
	f := newFixture(t)
	for _, a := range f.providers {
		a.Script(sandbox.ErrTimeout, sandbox.ErrTimeout, sandbox.ErrTimeout)
	}

	_, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.ErrorIs(t, err, ErrAllCandidatesExhausted)
	assert.Contains(t, err.Error(), "timeout")

	recs := f.attempts(t, f.lastEvent(t).OrchestrationID)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.AttemptNumber)
		assert.Equal(t, storage.OutcomeTemporaryFailure, rec.Outcome)
	}
}

func TestPaymentNoEligibleProvider(t *testing.T) {
	f := newFixture(t)

	req := payment(100)
	req.Currency = "JPY"
	_, err := f.orch.ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrAllCandidatesExhausted)
	assert.Contains(t, err.Error(), "no eligible provider")
}

func TestPaymentCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.ProcessPayment(ctx, payment(100))
	require.ErrorIs(t, err, ErrAllCandidatesExhausted)
	assert.Zero(t, f.providers["stripe"].Calls())

	// 取消后的审计仍然写入
	log, err := f.store.Orchestration(context.Background(), f.lastEvent(t).OrchestrationID)
	require.NoError(t, err)
	assert.Equal(t, string(StateAllFailed), log.State)
}

func TestPaymentValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*provider.PaymentRequest)
		want   string
	}{
		{"zero amount", func(r *provider.PaymentRequest) { r.Amount = 0 }, "greater than zero"},
		{"negative amount", func(r *provider.PaymentRequest) { r.Amount = -5 }, "greater than zero"},
		{"NaN amount", func(r *provider.PaymentRequest) { r.Amount = math.NaN() }, "greater than zero"},
		{"infinite amount", func(r *provider.PaymentRequest) { r.Amount = math.Inf(1) }, "greater than zero"},
		{"over limit", func(r *provider.PaymentRequest) { r.Amount = 10000.01 }, "exceeds the limit"},
		{"missing currency", func(r *provider.PaymentRequest) { r.Currency = "" }, "currency"},
		{"missing tenant", func(r *provider.PaymentRequest) { r.TenantID = " " }, "tenant_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := payment(100)
			tt.mutate(&req)

			_, err := f.orch.ProcessPayment(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 400, KindOf(err).HTTPStatus())
			assert.Zero(t, f.providers["stripe"].Calls())
		})
	}
}

func TestPaymentTenantMaxAmount(t *testing.T) {
	f := newFixture(t)
	f.orch.SetTenants(map[string]compliance.TenantConfig{"acme": {MaxAmount: 50}})

	_, err := f.orch.ProcessPayment(context.Background(), payment(60))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "50.00")

	_, err = f.orch.ProcessPayment(context.Background(), payment(40))
	require.NoError(t, err)
}

func TestPaymentTenantLookupIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.orch.SetTenants(map[string]compliance.TenantConfig{"acme": {MaxAmount: 50}})

	req := payment(60)
	req.TenantID = "ACME"
	_, err := f.orch.ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrValidation)
}

func TestPaymentTenantPreferenceForUnmappedCountry(t *testing.T) {
	f := newFixture(t)
	f.orch.SetTenants(map[string]compliance.TenantConfig{
		"acme": {ProviderPreference: []string{"paypal", "adyen"}},
	})

	req := payment(100)
	req.Country = "BR"
	res, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "paypal", res.Provider)
}

func TestPaymentIdempotentReplay(t *testing.T) {
	guard, err := idem.New(&idem.Config{})
	require.NoError(t, err)
	f := newFixture(t, WithIdempotency(guard))

	req := payment(100)
	req.IdempotencyKey = "order-42"
	first, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ProviderTransactionID, second.ProviderTransactionID)
	assert.Equal(t, first.OrchestrationID, second.OrchestrationID)
	assert.Equal(t, 1, f.providers["stripe"].Calls())

	// 另一个租户的相同键互不影响
	req.TenantID = "globex"
	third, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Replayed)
	assert.Equal(t, 2, f.providers["stripe"].Calls())
}

func TestPaymentFailureIsNotCachedByIdempotency(t *testing.T) {
	guard, err := idem.New(&idem.Config{})
	require.NoError(t, err)
	f := newFixture(t, WithIdempotency(guard))
	f.providers["stripe"].Script(sandbox.ErrDeclined)

	req := payment(100)
	req.IdempotencyKey = "order-43"
	_, err = f.orch.ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrProviderPermanent)

	res, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestProviderIdempotencyKeyPerAttempt(t *testing.T) {
	var seen []string
	f := newFixture(t)
	spy := &keySpy{Adapter: sandbox.New("spy", sandbox.Config{}), keys: &seen}
	require.NoError(t, f.registry.Register("spy", spy, usdCard))
	f.orch.router.SetTable(router.Table{Default: []string{"spy"}})

	req := payment(100)
	req.IdempotencyKey = "caller-key"
	req.Metadata = map[string]string{"order": "1"}
	res, err := f.orch.ProcessPayment(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, res.OrchestrationID+":spy", seen[0])
	assert.Equal(t, "1", req.Metadata["order"])
}

func TestPaymentCallerCancelIsNotProviderFailure(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	slow := &cancelOnCall{Adapter: sandbox.New("slow", sandbox.Config{}), cancel: cancel}
	require.NoError(t, f.registry.Register("slow", slow, usdCard))
	f.orch.router.SetTable(router.Table{Default: []string{"slow"}})

	_, err := f.orch.ProcessPayment(ctx, payment(100))
	require.Error(t, err)

	snap, ok := f.breaker.Snapshot("slow")
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed, snap.State)
	assert.Zero(t, snap.ConsecutiveFailures)

	perf, ok := f.registry.Snapshot("slow")
	require.True(t, ok)
	assert.Zero(t, perf.Observations)
	assert.InDelta(t, provider.InitialPerformance().SuccessRate, perf.SuccessRate, 1e-9)
}

// cancelOnCall 模拟调用方在提供方响应前取消
type cancelOnCall struct {
	*sandbox.Adapter
	cancel context.CancelFunc
}

func (c *cancelOnCall) ProcessPayment(ctx context.Context, _ provider.PaymentRequest) (*provider.PaymentResponse, error) {
	c.cancel()
	return nil, sandbox.ErrTimeout
}

type keySpy struct {
	*sandbox.Adapter
	keys *[]string
}

func (s *keySpy) ProcessPayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	*s.keys = append(*s.keys, req.IdempotencyKey)
	req.Metadata["order"] = "mutated"
	return s.Adapter.ProcessPayment(ctx, req)
}

func TestBreakerOpenedEventPublished(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.breaker.RecordOutcome("stripe", false)
	}
	f.providers["stripe"].Script(sandbox.ErrDeclined)

	_, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.Error(t, err)
	require.True(t, f.breaker.IsOpen("stripe"))

	var opened []notify.Event
	for _, evt := range f.events.Events() {
		if evt.Type == notify.EventBreakerOpened {
			opened = append(opened, evt)
		}
	}
	require.Len(t, opened, 1)
	assert.Equal(t, "stripe", opened[0].Provider)
}

func TestRefundUsesOriginalProvider(t *testing.T) {
	f := newFixture(t)
	f.breaker.RecordOutcome("stripe", false)
	f.providers["stripe"].Script(sandbox.ErrTimeout, sandbox.ErrTimeout, sandbox.ErrTimeout)

	pay, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.NoError(t, err)
	require.Equal(t, "paypal", pay.Provider)

	res, err := f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		TransactionID: pay.ProviderTransactionID,
		Amount:        100,
		TenantID:      "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "paypal", res.Provider)
	assert.NotEmpty(t, res.RefundID)
	assert.Equal(t, "refunded", res.Status)

	evt := f.lastEvent(t)
	assert.Equal(t, notify.EventRefundSucceeded, evt.Type)

	status, err := f.orch.PaymentStatus(context.Background(), "", pay.ProviderTransactionID)
	require.NoError(t, err)
	assert.Equal(t, "refunded", status.Status)
}

func TestRefundCircuitOpenFailsWithoutFailover(t *testing.T) {
	f := newFixture(t)
	pay, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		f.breaker.RecordOutcome("stripe", false)
	}
	calls := f.providers["stripe"].Calls()

	_, err = f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		Provider:      "stripe",
		TransactionID: pay.ProviderTransactionID,
		Amount:        100,
		TenantID:      "acme",
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 503, KindOf(err).HTTPStatus())
	assert.Equal(t, calls, f.providers["stripe"].Calls())
	assert.Zero(t, f.providers["paypal"].Calls())

	evt := f.lastEvent(t)
	assert.Equal(t, notify.EventRefundFailed, evt.Type)
	recs := f.attempts(t, evt.OrchestrationID)
	require.Len(t, recs, 1)
	assert.Equal(t, storage.OutcomeSkippedCircuitOpen, recs[0].Outcome)
}

func TestRefundDoesNotRetry(t *testing.T) {
	f := newFixture(t)
	pay, err := f.orch.ProcessPayment(context.Background(), payment(100))
	require.NoError(t, err)
	f.providers["stripe"].Script(sandbox.ErrTimeout)
	calls := f.providers["stripe"].Calls()

	_, err = f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		TransactionID: pay.ProviderTransactionID,
		Amount:        100,
		TenantID:      "acme",
	})
	require.ErrorIs(t, err, ErrProviderTemporary)
	assert.Equal(t, calls+1, f.providers["stripe"].Calls())
}

func TestRefundValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		TransactionID: "unknown_tx",
		Amount:        10,
		TenantID:      "acme",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "specify provider")

	_, err = f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		Provider:      "worldpay",
		TransactionID: "tx",
		Amount:        10,
		TenantID:      "acme",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.orch.ProcessRefund(context.Background(), provider.RefundRequest{
		Provider:      "stripe",
		TransactionID: "tx",
		TenantID:      "acme",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPaymentStatusNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.PaymentStatus(context.Background(), "", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orch.PaymentStatus(context.Background(), "stripe", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orch.PaymentStatus(context.Background(), "worldpay", "tx")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	require.Error(t, err)
}
