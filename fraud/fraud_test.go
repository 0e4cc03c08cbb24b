package fraud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

func TestRuleGate(t *testing.T) {
	gate := NewRuleGate(Config{
		ReviewAmount:     1000,
		BlockAmount:      10000,
		BlockedCountries: []string{"kp"},
	}, nil)

	tests := []struct {
		name    string
		req     provider.PaymentRequest
		level   Level
		reasons int
	}{
		{"low", provider.PaymentRequest{Amount: 10, Country: "DE"}, LevelLow, 0},
		{"review amount", provider.PaymentRequest{Amount: 1000, Country: "DE"}, LevelMedium, 1},
		{"block amount", provider.PaymentRequest{Amount: 20000, Country: "DE"}, LevelHigh, 1},
		{"blocked country", provider.PaymentRequest{Amount: 10, Country: "KP"}, LevelHigh, 1},
		{"blocked country with review amount stays high", provider.PaymentRequest{Amount: 2000, Country: "KP"}, LevelHigh, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := gate.Assess(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.level, a.Level)
			assert.Len(t, a.Reasons, tt.reasons)
			assert.LessOrEqual(t, a.Score, 1.0)
		})
	}
}

func TestAssessmentReason(t *testing.T) {
	assert.Equal(t, "high risk", Assessment{Level: LevelHigh}.Reason())
	assert.Equal(t, "a; b", Assessment{Reasons: []string{"a", "b"}}.Reason())
}

func TestGateFunc(t *testing.T) {
	var g Gate = GateFunc(func(context.Context, provider.PaymentRequest) (Assessment, error) {
		return Assessment{Level: LevelMedium}, nil
	})
	a, err := g.Assess(context.Background(), provider.PaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, a.Level)
}
