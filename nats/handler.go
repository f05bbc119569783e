package nats

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/arloliu/telemetry"
)

// JobFunc processes one dequeued job. Its arguments never include the trace
// envelope.
type JobFunc func(ctx context.Context, job *Job) error

// Handler wraps fn as a jetstream.MessageHandler.
//
// The trace envelope is stripped from the job arguments whether or not
// tracing is on. A trace is only started when the job carries trace headers,
// in the envelope or in the message headers, and then in basic mode, so
// host matching and sampling are skipped. The message is acked when fn
// succeeds, nak'd when it fails or panics, and terminated when the body
// cannot be decoded.
//
// Panics if fn is nil.
func Handler(reg *telemetry.Registry, fn JobFunc, opts ...Option) jetstream.MessageHandler {
	if fn == nil {
		panic("telemetry/nats: handler must not be nil")
	}
	if reg == nil {
		reg = telemetry.Default()
	}
	o := applyOptions(opts)
	logger := reg.Logger()

	return func(msg jetstream.Msg) {
		job, err := decodeJob(msg.Data())
		if err != nil {
			logger.Error("telemetry: dropping undecodable job",
				zap.String("subject", msg.Subject()),
				zap.Error(err),
			)
			settle(logger, msg.Term())

			return
		}

		args, headers := StripHeaders(job.Args)
		job.Args = args
		if headers.Empty() {
			headers = ExtractNATS(msg.Headers())
		}

		name := o.namer.Name(queueName(msg, o))
		ctx, tr := reg.Fetch(context.Background(),
			telemetry.BasicMode(),
			telemetry.RequireHeaders(),
			telemetry.FromHeaders(headers),
			telemetry.WithName(name),
		)

		defer func() {
			if r := recover(); r != nil {
				settle(logger, msg.Nak())
				panic(r)
			}
		}()

		err = tr.Apply(ctx, name, func(*telemetry.Trace) error {
			return fn(ctx, job)
		})
		if err != nil {
			settle(logger, msg.Nak())

			return
		}
		settle(logger, msg.Ack())
	}
}

func queueName(msg jetstream.Msg, o options) string {
	if o.queue != "" {
		return o.queue
	}
	if md, err := msg.Metadata(); err == nil && md != nil && md.Stream != "" {
		return md.Stream
	}

	return msg.Subject()
}

func settle(logger *zap.Logger, err error) {
	if err != nil {
		logger.Warn("telemetry: failed to settle job message", zap.Error(err))
	}
}
