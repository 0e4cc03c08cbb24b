package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		to    State
	}{
		{StateValidating, EventValidated, StateFraudCheck},
		{StateValidating, EventRejected, StateRejected},
		{StateValidating, EventResolved, StateAttempting},
		{StateFraudCheck, EventPassed, StateComplianceCheck},
		{StateFraudCheck, EventRejected, StateRejected},
		{StateComplianceCheck, EventPassed, StateRouting},
		{StateComplianceCheck, EventRejected, StateRejected},
		{StateRouting, EventRouted, StateAttempting},
		{StateRouting, EventNoCandidates, StateAllFailed},
		{StateAttempting, EventNextCandidate, StateAttempting},
		{StateAttempting, EventSucceeded, StateSucceeded},
		{StateAttempting, EventHalted, StateAllFailed},
		{StateAttempting, EventExhausted, StateAllFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			to, err := next(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		from  State
		event Event
	}{
		{StateValidating, EventSucceeded},
		{StateFraudCheck, EventRouted},
		{StateRouting, EventRejected},
		{StateSucceeded, EventNextCandidate},
		{StateAllFailed, EventSucceeded},
		{StateRejected, EventValidated},
	}
	for _, tt := range tests {
		to, err := next(tt.from, tt.event)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, tt.from, to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateAllFailed.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateAttempting.Terminal())
	assert.False(t, StateValidating.Terminal())
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindCircuitOpen, "stripe unavailable", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "circuit_open: stripe unavailable", err.Error())
	assert.Equal(t, KindInternal, KindOf(assert.AnError))

	assert.Equal(t, 403, KindFraudBlocked.HTTPStatus())
	assert.Equal(t, 422, KindComplianceViolation.HTTPStatus())
	assert.Equal(t, 409, KindDuplicateRequest.HTTPStatus())
	assert.Equal(t, 502, KindAllCandidatesExhausted.HTTPStatus())
	assert.Equal(t, 500, KindInternal.HTTPStatus())
}
