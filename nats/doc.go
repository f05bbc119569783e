// Package nats traces work queued on NATS JetStream.
//
// Producers call Publisher.Enqueue, which appends the current trace headers to
// the job arguments as a trailing {"tracer": {...}} envelope and also sets
// them on the message headers. Consumers wrap their job function with
// Handler, which strips the envelope before the job sees its arguments and
// continues the producer's trace in basic mode:
//
//	js, _ := jetstream.New(nc)
//	pub := nats.NewPublisher(js)
//	_, err := pub.Enqueue(ctx, "jobs.email", nats.Job{Method: "deliver", Args: []any{userID}})
//
//	consumer.Consume(nats.Handler(reg, func(ctx context.Context, job *nats.Job) error {
//	    return deliver(ctx, job.Args)
//	}))
//
// The envelope is stripped even when tracing is switched off, so a worker
// never sees arguments it did not enqueue.
package nats
