package orchestrator

import (
	"context"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

type instruments struct {
	orchestrations  metrics.Counter
	attempts        metrics.Counter
	attemptDuration metrics.Histogram
}

func newInstruments(meter metrics.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)
	inst.orchestrations, err = meter.Counter(metrics.MetricOrchestrationsTotal,
		"Completed orchestrations by kind and outcome.")
	if err != nil {
		return inst, xerrors.Wrap(err, "orchestrator: create orchestrations counter")
	}
	inst.attempts, err = meter.Counter(metrics.MetricAttemptsTotal,
		"Provider attempts by outcome.")
	if err != nil {
		return inst, xerrors.Wrap(err, "orchestrator: create attempts counter")
	}
	inst.attemptDuration, err = meter.Histogram(metrics.MetricAttemptDurationSeconds,
		"Duration of provider attempts including retries.",
		metrics.WithBuckets([]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}))
	if err != nil {
		return inst, xerrors.Wrap(err, "orchestrator: create attempt duration histogram")
	}
	return inst, nil
}

func (i instruments) recordOrchestration(ctx context.Context, kind storage.Kind, outcome string) {
	i.orchestrations.Inc(ctx,
		metrics.L(metrics.LabelOperation, string(kind)),
		metrics.L(metrics.LabelOutcome, outcome))
}

func (i instruments) recordAttempt(ctx context.Context, providerName string, outcome storage.Outcome, d time.Duration) {
	i.attempts.Inc(ctx,
		metrics.L(metrics.LabelProvider, providerName),
		metrics.L(metrics.LabelOutcome, string(outcome)))
	if outcome != storage.OutcomeSkippedCircuitOpen {
		i.attemptDuration.Record(ctx, d.Seconds(), metrics.L(metrics.LabelProvider, providerName))
	}
}
