package telemetry

import (
	"encoding/json"
	"time"
)

// processingError is the annotation value recorded for a failed post-process task.
const processingError = "processing_error"

// Annotation is a timestamped key/value event attached to a span.
// It is a value type and is never mutated after creation.
type Annotation struct {
	Key   string
	Value any
	// Timestamp is the creation time in Unix nanoseconds.
	Timestamp int64
	// ProcessingDuration is set for annotations produced by post-process tasks.
	ProcessingDuration *time.Duration
	// Exception holds the failure text of a post-process task.
	Exception string
}

func newAnnotation(key string, value any) Annotation {
	return Annotation{
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UnixNano(),
	}
}

// MarshalJSON renders the annotation with its key as a field name:
//
//	{"<key>": value, "logged_at": ns, "time_to_process": ns, "exception": "..."}
func (a Annotation) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"logged_at": a.Timestamp,
	}
	if a.ProcessingDuration != nil {
		m["time_to_process"] = a.ProcessingDuration.Nanoseconds()
	}
	if a.Exception != "" {
		m["exception"] = a.Exception
	}
	m[a.Key] = a.Value

	return json.Marshal(m)
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []byte:
		return len(val) == 0
	default:
		return false
	}
}
