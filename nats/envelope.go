package nats

import (
	"context"

	"github.com/arloliu/telemetry"
)

// EnvelopeKey is the key of the trailing argument that carries trace headers.
const EnvelopeKey = "tracer"

// AttachHeaders appends the trace envelope to args when ctx carries an
// active trace. Otherwise args is returned unchanged.
func AttachHeaders(ctx context.Context, args []any) []any {
	tr := telemetry.Current(ctx)
	if tr == nil || !tr.Active() {
		return args
	}

	h := tr.Headers()
	envelope := map[string]any{
		EnvelopeKey: map[string]any{
			telemetry.TraceIDHeader: h.TraceID,
			telemetry.SpanIDHeader:  h.SpanID,
		},
	}

	out := make([]any, 0, len(args)+1)
	out = append(out, args...)

	return append(out, envelope)
}

// StripHeaders removes a trailing trace envelope from args and returns the
// remaining arguments with the headers it carried. The last argument is
// only treated as an envelope when it is a map whose tracer key holds a map.
// Anything else is left in place.
func StripHeaders(args []any) ([]any, telemetry.Headers) {
	if len(args) == 0 {
		return args, telemetry.Headers{}
	}

	inner, ok := envelopeHeaders(args[len(args)-1])
	if !ok {
		return args, telemetry.Headers{}
	}

	return args[:len(args)-1], telemetry.HeadersFromMap(inner)
}

func envelopeHeaders(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}

	switch inner := m[EnvelopeKey].(type) {
	case map[string]any:
		return inner, true
	case map[string]string:
		out := make(map[string]any, len(inner))
		for k, val := range inner {
			out[k] = val
		}

		return out, true
	default:
		return nil, false
	}
}
