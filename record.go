package telemetry

import (
	"encoding/json"
	"strconv"
)

// Record is the serialized form of a flushed trace handed to a Sink.
type Record struct {
	ID            string       `json:"id"`
	Tainted       string       `json:"tainted,omitempty"`
	CurrentSpanID string       `json:"current_span_id"`
	Spans         []SpanRecord `json:"spans"`
}

// SpanRecord is one span within a Record. PID, Hostname and
// InstrumentationTime are only set on the first span of the trace.
type SpanRecord struct {
	ID           string       `json:"id"`
	ParentSpanID string       `json:"parent_span_id,omitempty"`
	Name         string       `json:"name,omitempty"`
	StartTime    int64        `json:"start_time,omitempty"`
	StopTime     int64        `json:"stop_time,omitempty"`
	Duration     *int64       `json:"duration,omitempty"`
	Annotations  []Annotation `json:"annotations"`

	PID                 int    `json:"pid,omitempty"`
	Hostname            string `json:"hostname,omitempty"`
	InstrumentationTime *int64 `json:"instrumentation_time,omitempty"`
}

// JSON returns the record encoded as JSON.
func (r *Record) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Root returns the first span of the trace, or nil. When the trace continues
// an inbound request its root carries the caller's span id as parent.
func (r *Record) Root() *SpanRecord {
	if len(r.Spans) == 0 {
		return nil
	}

	return &r.Spans[0]
}

// Find returns the span record with the given id, or nil.
func (r *Record) Find(id string) *SpanRecord {
	for i := range r.Spans {
		if r.Spans[i].ID == id {
			return &r.Spans[i]
		}
	}

	return nil
}

func newSpanRecord(s *Span, root bool) SpanRecord {
	rec := SpanRecord{
		ID:           strconv.FormatUint(s.id, 10),
		ParentSpanID: s.parentID,
		Name:         s.name,
		StartTime:    s.startTime,
		StopTime:     s.stopTime,
		Annotations:  s.Annotations(),
	}
	if s.state == SpanStopped && s.startTime != 0 {
		d := s.stopTime - s.startTime
		rec.Duration = &d
	}
	if root {
		rec.PID = s.pid
		rec.Hostname = s.hostname
	}

	return rec
}
