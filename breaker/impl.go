package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg     *Config
	logger  clog.Logger
	changes metrics.Counter

	breakers sync.Map // map[string]*entry
}

// entry 单个提供方的熔断器
//
// gobreaker 在状态切换时会清空计数，快照所需的连续失败数、
// 最近失败时间和重开时间由 entry 自行维护。
type entry struct {
	cb *gobreaker.TwoStepCircuitBreaker[struct{}]

	mu          sync.Mutex
	failures    uint32
	lastFailure time.Time
	reopenAt    time.Time
}

func newBreaker(cfg *Config, opt options) (Breaker, error) {
	return &circuitBreaker{
		cfg:     cfg,
		logger:  opt.logger,
		changes: stateChangeCounter(opt.meter),
	}, nil
}

func (b *circuitBreaker) Register(name string) {
	if name == "" {
		return
	}
	b.getOrCreate(name)
}

func (b *circuitBreaker) Allow(name string) (Done, error) {
	if name == "" {
		return nil, ErrKeyEmpty
	}
	e := b.getOrCreate(name)

	done, err := e.cb.Allow()
	if err != nil {
		if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrOpenState
		}
		return nil, err
	}

	var once sync.Once
	return func(success bool) {
		once.Do(func() {
			e.record(success)
			done(success)
		})
	}, nil
}

func (b *circuitBreaker) IsOpen(name string) bool {
	return b.State(name) == StateOpen
}

func (b *circuitBreaker) RecordOutcome(name string, success bool) {
	done, err := b.Allow(name)
	if err != nil {
		return
	}
	done(success)
}

func (b *circuitBreaker) State(name string) State {
	val, ok := b.breakers.Load(name)
	if !ok {
		return StateClosed
	}
	return fromGobreaker(val.(*entry).cb.State())
}

func (b *circuitBreaker) Snapshot(name string) (Snapshot, bool) {
	val, ok := b.breakers.Load(name)
	if !ok {
		return Snapshot{}, false
	}
	e := val.(*entry)
	state := fromGobreaker(e.cb.State())

	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Name:                name,
		State:               state,
		ConsecutiveFailures: e.failures,
		LastFailureAt:       e.lastFailure,
	}
	if state == StateOpen {
		snap.ReopenAt = e.reopenAt
	}
	return snap, true
}

func (b *circuitBreaker) getOrCreate(name string) *entry {
	if val, ok := b.breakers.Load(name); ok {
		return val.(*entry)
	}

	e := &entry{}
	e.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: b.readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.onStateChange(e, name, fromGobreaker(from), fromGobreaker(to))
		},
	})

	actual, loaded := b.breakers.LoadOrStore(name, e)
	if !loaded {
		b.logger.Debug("circuit breaker registered", clog.String("provider", name))
	}
	return actual.(*entry)
}

// readyToTrip 连续失败达到阈值即熔断
func (b *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= b.cfg.FailureThreshold
}

// onStateChange 在 gobreaker 持锁期间调用，不能回调 e.cb
func (b *circuitBreaker) onStateChange(e *entry, name string, from, to State) {
	if to == StateOpen {
		e.mu.Lock()
		e.reopenAt = time.Now().Add(b.cfg.Cooldown)
		e.mu.Unlock()
	}

	recordStateChange(b.changes, name, from, to)

	fields := []clog.Field{
		clog.String("provider", name),
		clog.String("from", from.String()),
		clog.String("to", to.String()),
	}
	if to == StateOpen {
		b.logger.Warn("circuit breaker opened", append(fields, clog.Duration("cooldown", b.cfg.Cooldown))...)
		return
	}
	b.logger.Info("circuit breaker state changed", fields...)
}

func (e *entry) record(success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if success {
		e.failures = 0
		return
	}
	e.failures++
	e.lastFailure = time.Now()
}

func fromGobreaker(state gobreaker.State) State {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
