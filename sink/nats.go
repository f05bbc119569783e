package sink

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/telemetry"
)

// Publisher is the part of jetstream.JetStream the NATS backend uses.
type Publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var _ Publisher = (jetstream.JetStream)(nil)

// NATS publishes each trace as JSON to a JetStream subject. The trace and
// current span ids travel in the message headers.
type NATS struct {
	js      Publisher
	subject string
	conn    *nats.Conn
}

// NewNATS creates a NATS backend on an existing JetStream client.
func NewNATS(js Publisher, subject string) *NATS {
	return &NATS{js: js, subject: subject}
}

// DialNATS connects to url and creates a NATS backend that owns the connection.
func DialNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("telemetry-sink"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	n := NewNATS(js, subject)
	n.conn = nc

	return n, nil
}

// Name implements Backend.
func (n *NATS) Name() string { return "nats" }

// Process implements Backend.
func (n *NATS) Process(ctx context.Context, rec *telemetry.Record) error {
	data, err := rec.JSON()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set(telemetry.TraceIDHeader, rec.ID)
	if rec.CurrentSpanID != "" {
		msg.Header.Set(telemetry.SpanIDHeader, rec.CurrentSpanID)
	}

	_, err = n.js.PublishMsg(ctx, msg)

	return err
}

// Close implements Backend. A dialed connection is drained.
func (n *NATS) Close(context.Context) error {
	if n.conn == nil {
		return nil
	}

	return n.conn.Drain()
}
