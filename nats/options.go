package nats

import "github.com/arloliu/telemetry"

// AnnotationPublishError is written on the publish span when JetStream
// rejects a job.
const AnnotationPublishError = "PublishError"

type options struct {
	namer telemetry.SpanNamer
	queue string
}

// Option configures Handler and Publisher.
type Option func(*options)

// WithSpanNamer sets how queue and publish span names are rendered.
func WithSpanNamer(n telemetry.SpanNamer) Option {
	return func(o *options) {
		o.namer = n
	}
}

// WithQueueName names the trace after queue instead of the message's stream
// or subject.
func WithQueueName(queue string) Option {
	return func(o *options) {
		o.queue = queue
	}
}

func applyOptions(opts []Option) options {
	o := options{namer: telemetry.DefaultNamer{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namer == nil {
		o.namer = telemetry.DefaultNamer{}
	}

	return o
}
