package telemetry

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// Wire names of the trace headers.
const (
	TraceIDHeader = "X-Telemetry-TraceId"
	SpanIDHeader  = "X-Telemetry-SpanId"
)

// Headers is the propagated pair: the trace id and the span that is the
// logical parent of the next hop.
type Headers struct {
	TraceID string
	SpanID  string
}

// Empty reports whether neither header is set.
func (h Headers) Empty() bool {
	return h.TraceID == "" && h.SpanID == ""
}

// Map returns the headers keyed by their wire names. Unset headers are omitted.
func (h Headers) Map() map[string]string {
	m := make(map[string]string, 2)
	if h.TraceID != "" {
		m[TraceIDHeader] = h.TraceID
	}
	if h.SpanID != "" {
		m[SpanIDHeader] = h.SpanID
	}

	return m
}

// HeadersFromMap reads headers from a decoded envelope. Keys are matched
// case-insensitively and values may be strings or numbers.
func HeadersFromMap(m map[string]any) Headers {
	var h Headers
	for k, v := range m {
		switch {
		case strings.EqualFold(k, TraceIDHeader):
			h.TraceID = headerValue(v)
		case strings.EqualFold(k, SpanIDHeader):
			h.SpanID = headerValue(v)
		}
	}

	return h
}

func headerValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprint(val)
	}
}

// InjectHeaders writes h into any OTel text map carrier.
func InjectHeaders(h Headers, carrier propagation.TextMapCarrier) {
	if h.TraceID != "" {
		carrier.Set(TraceIDHeader, h.TraceID)
	}
	if h.SpanID != "" {
		carrier.Set(SpanIDHeader, h.SpanID)
	}
}

// ExtractHeaders reads the trace headers from any OTel text map carrier.
func ExtractHeaders(carrier propagation.TextMapCarrier) Headers {
	return Headers{
		TraceID: strings.TrimSpace(carrier.Get(TraceIDHeader)),
		SpanID:  strings.TrimSpace(carrier.Get(SpanIDHeader)),
	}
}

// InjectHTTP writes the trace headers into HTTP headers.
func InjectHTTP(h Headers, headers http.Header) {
	InjectHeaders(h, propagation.HeaderCarrier(headers))
}

// ExtractHTTP reads the trace headers from HTTP headers.
func ExtractHTTP(headers http.Header) Headers {
	return ExtractHeaders(propagation.HeaderCarrier(headers))
}

// InjectGRPC writes the trace headers into gRPC metadata.
func InjectGRPC(h Headers, md metadata.MD) {
	InjectHeaders(h, metadataCarrier(md))
}

// ExtractGRPC reads the trace headers from gRPC metadata.
func ExtractGRPC(md metadata.MD) Headers {
	return ExtractHeaders(metadataCarrier(md))
}

// metadataCarrier adapts gRPC metadata to propagation.TextMapCarrier.
type metadataCarrier metadata.MD

func (m metadataCarrier) Get(key string) string {
	vals := metadata.MD(m).Get(key)
	if len(vals) > 0 {
		return vals[0]
	}

	return ""
}

func (m metadataCarrier) Set(key string, value string) {
	metadata.MD(m).Set(key, value)
}

func (m metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}
