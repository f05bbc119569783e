package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/arloliu/telemetry"
)

// headerCarrier adapts nats.Header to propagation.TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string {
	vals := nats.Header(c).Values(key)
	if len(vals) > 0 {
		return vals[0]
	}

	return ""
}

func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	return keys
}

// InjectNATS writes h into the message headers, allocating them if needed.
func InjectNATS(h telemetry.Headers, msg *nats.Msg) {
	if h.Empty() {
		return
	}
	if msg.Header == nil {
		msg.Header = make(nats.Header)
	}

	telemetry.InjectHeaders(h, headerCarrier(msg.Header))
}

// ExtractNATS reads the trace headers from message headers.
func ExtractNATS(header nats.Header) telemetry.Headers {
	if header == nil {
		return telemetry.Headers{}
	}

	return telemetry.ExtractHeaders(headerCarrier(header))
}
