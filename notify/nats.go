package notify

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// conn *nats.Conn 中发布所需的部分
type conn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
}

// natsPublisher NATS Core 发布实现
type natsPublisher struct {
	conn   conn
	prefix string
	codec  codec
	logger clog.Logger
}

func newNATSPublisher(c conn, cfg *Config, logger clog.Logger) *natsPublisher {
	return &natsPublisher{
		conn:   c,
		prefix: cfg.SubjectPrefix,
		codec:  newCodec(cfg.Encoding),
		logger: logger,
	}
}

func connectNATS(cfg *Config, logger clog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", clog.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", clog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.ErrUnavailable, "notify: connect nats %s: %v", cfg.URL, err)
	}
	return nc, nil
}

// Subject 事件对应的主题，例如 paygate.events.payment.succeeded
func (p *natsPublisher) Subject(t EventType) string {
	return p.prefix + "." + string(t)
}

func (p *natsPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := p.Subject(evt.Type)

	ctx, span, headers := trace.StartProducerSpan(ctx, nil, trace.SpanNamePublish(subject), trace.MessagingMeta{
		System:      trace.MessagingSystemNATS,
		Destination: subject,
		Operation:   trace.MessagingOperationPublish,
	}, attribute.String(trace.AttrOrchestrationID, evt.OrchestrationID))
	defer span.End()

	data, err := p.codec.Marshal(evt)
	if err != nil {
		trace.MarkSpanError(span, err)
		return xerrors.Wrap(err, "notify: encode event")
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", p.codec.ContentType())
	if evt.CorrelationID != "" {
		msg.Header.Set("X-Correlation-ID", evt.CorrelationID)
	}
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		trace.MarkSpanError(span, err)
		p.logger.WarnContext(ctx, "publish event failed", clog.String("subject", subject), clog.Error(err))
		return xerrors.Wrapf(err, "notify: publish %s", subject)
	}
	p.logger.DebugContext(ctx, "event published", clog.String("subject", subject))
	return nil
}

func (p *natsPublisher) Close() error {
	return p.conn.Drain()
}
