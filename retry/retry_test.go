package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

// fakeTimer 立即触发并记录每次等待时长
type fakeTimer struct {
	waits *[]time.Duration
	c     chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	*f.waits = append(*f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func newFakeExecutor(cfg *Config) (*Executor, *[]time.Duration) {
	waits := &[]time.Duration{}
	return New(cfg, WithTimer(func() backoff.Timer { return &fakeTimer{waits: waits} })), waits
}

func scripted(errs ...error) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}, &calls
}

func TestAttemptSucceedsImmediately(t *testing.T) {
	exec, waits := newFakeExecutor(nil)
	fn, calls := scripted()

	res, err := exec.Attempt(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, Result{Tries: 1}, res)
	assert.Empty(t, *waits)
}

func TestAttemptRetriesTemporaryWithBackoff(t *testing.T) {
	exec, waits := newFakeExecutor(nil)
	fn, calls := scripted(errors.New("gateway timeout"), errors.New("NETWORK unreachable"))

	res, err := exec.Attempt(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 3, res.Tries)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestAttemptExhaustsOnTemporary(t *testing.T) {
	exec, waits := newFakeExecutor(nil)
	last := errors.New("timeout #3")
	fn, calls := scripted(errors.New("timeout #1"), errors.New("timeout #2"), last)

	res, err := exec.Attempt(context.Background(), fn)
	assert.Equal(t, last, err)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, Result{Tries: 3, Temporary: true}, res)
	assert.Len(t, *waits, 2)
}

func TestAttemptStopsOnPermanent(t *testing.T) {
	exec, waits := newFakeExecutor(nil)
	declined := errors.New("card_declined")
	fn, calls := scripted(errors.New("rate_limit exceeded"), declined)

	res, err := exec.Attempt(context.Background(), fn)
	assert.Equal(t, declined, err)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, Result{Tries: 2, Temporary: false}, res)
	assert.Equal(t, []time.Duration{time.Second}, *waits)
}

func TestAttemptCustomConfig(t *testing.T) {
	exec, waits := newFakeExecutor(&Config{MaxRetries: 4, BaseDelay: 10 * time.Millisecond, Multiplier: 3})
	fn, _ := scripted(errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout"))

	res, err := exec.Attempt(context.Background(), fn)
	assert.Error(t, err)
	assert.Equal(t, 4, res.Tries)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond}, *waits)
}

func TestAttemptCancelledContext(t *testing.T) {
	exec := New(&Config{BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn, calls := scripted(errors.New("timeout"))
	res, err := exec.Attempt(ctx, fn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, res.Tries)
}

func TestAttemptRealTimerCancelledDuringWait(t *testing.T) {
	exec := New(&Config{BaseDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := exec.Attempt(ctx, func(context.Context) error { return errors.New("service_unavailable") })
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Timeout waiting for acquirer"), true},
		{errors.New("network reset"), true},
		{errors.New("RATE_LIMIT"), true},
		{errors.New("temporary outage"), true},
		{errors.New("service_unavailable"), true},
		{errors.New("internal_server_error"), true},
		{errors.New("card_declined"), false},
		{errors.New("invalid currency"), false},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{provider.Temporary(errors.New("acquirer busy")), true},
		{provider.Permanent(errors.New("timeout but marked permanent")), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTemporary(tt.err))
		})
	}
}
