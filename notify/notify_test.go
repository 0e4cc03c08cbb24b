package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

type fakeConn struct {
	msgs    []*nats.Msg
	err     error
	drained bool
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func sampleEvent() Event {
	return Event{
		Type:            EventPaymentSucceeded,
		OrchestrationID: "orch-1",
		CorrelationID:   "corr-1",
		Provider:        "adyen",
		Amount:          12.5,
		Currency:        "EUR",
		OccurredAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestNATSPublishJSON(t *testing.T) {
	fc := &fakeConn{}
	pub, err := New(&Config{Driver: "nats", URL: "nats://unused"}, withConn(fc), WithLogger(clog.Discard()))
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.Len(t, fc.msgs, 1)

	msg := fc.msgs[0]
	assert.Equal(t, "paygate.events.payment.succeeded", msg.Subject)
	assert.Equal(t, "application/json", msg.Header.Get("Content-Type"))
	assert.Equal(t, "corr-1", msg.Header.Get("X-Correlation-ID"))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "adyen", got.Provider)

	require.NoError(t, pub.Close())
	assert.True(t, fc.drained)
}

func TestNATSPublishMsgpack(t *testing.T) {
	fc := &fakeConn{}
	pub, err := New(&Config{Driver: "nats", URL: "nats://unused", Encoding: "msgpack", SubjectPrefix: "school.pay"}, withConn(fc))
	require.NoError(t, err)

	evt := sampleEvent()
	evt.Type = EventRefundFailed
	require.NoError(t, pub.Publish(context.Background(), evt))

	msg := fc.msgs[0]
	assert.Equal(t, "school.pay.refund.failed", msg.Subject)
	var got Event
	require.NoError(t, msgpack.Unmarshal(msg.Data, &got))
	assert.Equal(t, EventRefundFailed, got.Type)
}

func TestNATSPublishInjectsTraceContext(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	fc := &fakeConn{}
	pub := newNATSPublisher(fc, &Config{SubjectPrefix: "paygate.events", Encoding: "json"}, clog.Discard())
	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.Len(t, fc.msgs, 1)
	assert.NotEmpty(t, fc.msgs[0].Header.Get("traceparent"))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanNamePublish("paygate.events.payment.succeeded"), spans[0].Name)
}

func TestNATSPublishError(t *testing.T) {
	boom := errors.New("connection closed")
	pub := newNATSPublisher(&fakeConn{err: boom}, &Config{SubjectPrefix: "p", Encoding: "json"}, clog.Discard())

	err := pub.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func TestPublishCancelledContext(t *testing.T) {
	fc := &fakeConn{}
	pub := newNATSPublisher(fc, &Config{SubjectPrefix: "p", Encoding: "json"}, clog.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.Publish(ctx, sampleEvent()), context.Canceled)
	assert.Empty(t, fc.msgs)
}

func TestNewDrivers(t *testing.T) {
	pub, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, Discard(), pub)

	pub, err = New(&Config{Driver: "memory"})
	require.NoError(t, err)
	rec, ok := pub.(*Recorder)
	require.True(t, ok)
	require.NoError(t, rec.Publish(context.Background(), sampleEvent()))
	assert.Len(t, rec.Events(), 1)

	_, err = New(&Config{Driver: "nats"})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = New(&Config{Driver: "kafka"})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = New(&Config{Encoding: "xml"})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}
