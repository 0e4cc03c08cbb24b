package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

func shutdown(t *testing.T, m Meter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, m.Shutdown(ctx))
}

// TestNew 测试创建 Meter 实例
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		opts    []Option
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "disabled", cfg: &Config{}},
		{name: "minimal config", cfg: &Config{Enabled: true, ServiceName: "paygate-test"}},
		{
			name: "with runtime and logger",
			cfg:  &Config{Enabled: true, Runtime: true},
			opts: []Option{WithLogger(clog.Discard())},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter, err := New(tt.cfg, tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, meter)
			shutdown(t, meter)
		})
	}
}

// TestDiscard 所有操作都应成功且无副作用
func TestDiscard(t *testing.T) {
	meter := Discard()
	ctx := context.Background()

	counter, err := meter.Counter("c", "c")
	require.NoError(t, err)
	counter.Inc(ctx)

	gauge, err := meter.Gauge("g", "g")
	require.NoError(t, err)
	gauge.Set(ctx, 100)

	histogram, err := meter.Histogram("h", "h")
	require.NoError(t, err)
	histogram.Record(ctx, 0.123)

	assert.NoError(t, meter.Shutdown(ctx))
}

// TestHandlerExposesRecordedValues 记录的指标应出现在 Prometheus 文本输出中
func TestHandlerExposesRecordedValues(t *testing.T) {
	meter, err := New(&Config{Enabled: true})
	require.NoError(t, err)
	defer shutdown(t, meter)

	ctx := context.Background()
	attempts, err := meter.Counter(MetricAttemptsTotal, "Provider attempts by outcome.")
	require.NoError(t, err)
	attempts.Inc(ctx, L(LabelProvider, "adyen"), L(LabelOutcome, "success"))
	attempts.Add(ctx, 2, L(LabelProvider, "paypal"), L(LabelOutcome, "temporary_failure"))

	rate, err := meter.Gauge(MetricProviderSuccessRate, "EMA success rate.")
	require.NoError(t, err)
	rate.Set(ctx, 91, L(LabelProvider, "adyen"))

	duration, err := meter.Histogram(MetricAttemptDurationSeconds, "Attempt duration.", WithUnit("s"), WithBuckets([]float64{0.1, 1}))
	require.NoError(t, err)
	duration.Record(ctx, 0.2, L(LabelProvider, "adyen"))

	rec := httptest.NewRecorder()
	meter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "paygate_attempts_total")
	assert.Contains(t, text, `provider="paypal"`)
	assert.Contains(t, text, "paygate_provider_success_rate")
	assert.Contains(t, text, "paygate_attempt_duration_seconds")
}

func TestGaugeIncDec(t *testing.T) {
	meter, err := New(&Config{Enabled: true})
	require.NoError(t, err)
	defer shutdown(t, meter)

	g, err := meter.Gauge("inflight", "in flight orchestrations")
	require.NoError(t, err)

	ctx := context.Background()
	g.Inc(ctx, L("tenant", "a"))
	g.Inc(ctx, L("tenant", "a"))
	g.Dec(ctx, L("tenant", "a"))

	impl, ok := g.(*gaugeImpl)
	require.True(t, ok)
	assert.Equal(t, 1.0, impl.values[labelKey([]Label{L("tenant", "a")})])
}

func TestHTTPStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", HTTPStatusClass(201))
	assert.Equal(t, "5xx", HTTPStatusClass(503))
	assert.Equal(t, "unknown", HTTPStatusClass(42))
	assert.Equal(t, OutcomeSuccess, HTTPOutcome(302))
	assert.Equal(t, OutcomeError, HTTPOutcome(409))
}
