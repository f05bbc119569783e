package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/telemetry"
)

// JetStream is the part of jetstream.JetStream the Publisher uses.
type JetStream interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var _ JetStream = (jetstream.JetStream)(nil)

// Publisher enqueues jobs with the current trace attached.
type Publisher struct {
	js   JetStream
	opts options
}

// NewPublisher creates a Publisher.
//
// Panics if js is nil.
func NewPublisher(js JetStream, opts ...Option) *Publisher {
	if js == nil {
		panic("telemetry/nats: JetStream must not be nil")
	}

	return &Publisher{js: js, opts: applyOptions(opts)}
}

// Enqueue publishes job to subject. When ctx carries an active trace the
// publish runs in a child span, and that span's headers are appended to the
// job arguments and set on the message headers.
func (p *Publisher) Enqueue(ctx context.Context, subject string, job Job, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	tr := telemetry.Current(ctx)
	if tr == nil || !tr.Active() {
		return p.publish(ctx, subject, job, telemetry.Headers{}, opts)
	}

	var (
		ack *jetstream.PubAck
		err error
	)
	name := p.opts.namer.Name(telemetry.NameMessaging("publish", subject))
	_ = tr.ApplyNewSpan(ctx, name, func(tr *telemetry.Trace, span *telemetry.Span) error {
		job.Args = AttachHeaders(ctx, job.Args)
		ack, err = p.publish(ctx, subject, job, tr.Headers(), opts)
		if err != nil {
			_ = span.Annotate(AnnotationPublishError, err.Error())
		}

		return nil
	})

	return ack, err
}

func (p *Publisher) publish(ctx context.Context, subject string, job Job, h telemetry.Headers, opts []jetstream.PublishOpt) (*jetstream.PubAck, error) {
	data, err := job.encode()
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	InjectNATS(h, msg)

	return p.js.PublishMsg(ctx, msg, opts...)
}
