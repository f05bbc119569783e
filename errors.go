package telemetry

import "errors"

// Configuration errors. These are returned at construction time.
var (
	// ErrInvalidSampleRatio is returned when a sample ratio is not a positive number.
	ErrInvalidSampleRatio = errors.New("telemetry: invalid sample ratio")

	// ErrInvalidHostPattern is returned when runOnHosts is not a valid regular expression.
	ErrInvalidHostPattern = errors.New("telemetry: invalid host pattern")

	// ErrMissingSinkDevice is returned when no sink backend is configured.
	ErrMissingSinkDevice = errors.New("telemetry: missing sink device")

	// ErrSinkDeviceNotFound is returned when the configured sink target cannot be opened.
	ErrSinkDeviceNotFound = errors.New("telemetry: sink device not found")
)

// Lifecycle misuse errors. These are programming errors at the call site.
var (
	// ErrSpanAlreadyStopped is returned when a stopped span is started, stopped, renamed or annotated.
	ErrSpanAlreadyStopped = errors.New("telemetry: span already stopped")

	// ErrTraceAlreadyFlushed is returned when a flushed trace is mutated.
	ErrTraceAlreadyFlushed = errors.New("telemetry: trace already flushed")
)
