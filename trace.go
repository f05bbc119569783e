package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Dirty reasons recorded when inbound headers arrive incomplete.
const (
	reasonMissingParent  = "trace_id present; parent_span_id not present."
	reasonMissingTraceID = "trace_id not present; parent_span_id present. Auto generating trace id"
)

// Sink receives flushed traces. Implementations must not panic and must
// handle their own errors; nothing is returned to the trace.
type Sink interface {
	Process(ctx context.Context, rec *Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec *Record)

// Process calls f.
func (f SinkFunc) Process(ctx context.Context, rec *Record) { f(ctx, rec) }

// Trace owns the spans of one logical operation in this process, tracks the
// current span and flushes to the sink exactly once.
//
// A Trace whose admission decision was negative is inactive: it has no id
// and no spans, and every method is a no-op.
//
// A Trace is not safe for concurrent use. It belongs to one request or job.
type Trace struct {
	id      string
	spans   []*Span
	current int
	active  bool
	dirty   bool
	reason  string
	flushed bool
	depth   int

	sink                   Sink
	logger                 *zap.Logger
	metrics                *instruments
	logInstrumentationTime bool
}

// ID returns the trace id, or "" for an inactive trace.
func (t *Trace) ID() string { return t.id }

// Active reports whether the trace is being recorded.
func (t *Trace) Active() bool { return t.active }

// Dirty reports whether the inbound headers were incomplete.
func (t *Trace) Dirty() bool { return t.dirty }

// DirtyReason explains why the trace is dirty.
func (t *Trace) DirtyReason() string { return t.reason }

// Flushed reports whether the trace was handed to the sink.
func (t *Trace) Flushed() bool { return t.flushed }

// Spans returns the spans in creation order, or nil for an inactive trace.
func (t *Trace) Spans() []*Span {
	if !t.active {
		return nil
	}
	out := make([]*Span, len(t.spans))
	copy(out, t.spans)

	return out
}

// RootSpan returns the first span, or nil for an inactive trace.
func (t *Trace) RootSpan() *Span {
	if !t.active {
		return nil
	}

	return t.spans[0]
}

// CurrentSpan returns the span that annotations go to, or nil for an inactive trace.
func (t *Trace) CurrentSpan() *Span {
	if !t.active {
		return nil
	}

	return t.spans[t.current]
}

// InProgress reports whether any span is started and not stopped.
func (t *Trace) InProgress() bool {
	for _, s := range t.spans {
		if s.InProgress() {
			return true
		}
	}

	return false
}

// Headers returns the pair to inject into outbound calls: this trace's id and
// the current span's id.
func (t *Trace) Headers() Headers {
	if !t.active {
		return Headers{}
	}

	return Headers{TraceID: t.id, SpanID: t.CurrentSpan().IDString()}
}

func (t *Trace) check() error {
	if t.flushed {
		return ErrTraceAlreadyFlushed
	}

	return nil
}

// Start starts the current span.
func (t *Trace) Start(name string) error {
	if !t.active {
		return nil
	}
	if err := t.check(); err != nil {
		return err
	}

	return t.CurrentSpan().Start(name)
}

// StartNewSpan creates a child of the current span, makes it current and starts it.
func (t *Trace) StartNewSpan(name string) (*Span, error) {
	if !t.active {
		return nil, nil
	}
	if err := t.check(); err != nil {
		return nil, err
	}

	s := t.newSpan(t.CurrentSpan().IDString())
	t.spans = append(t.spans, s)
	t.current = len(t.spans) - 1
	if err := s.Start(name); err != nil {
		return nil, err
	}

	return s, nil
}

// Stop stops every span that is still open, newest first, and flushes.
func (t *Trace) Stop(ctx context.Context) error {
	if !t.active {
		return nil
	}
	if err := t.check(); err != nil {
		return err
	}

	for i := len(t.spans) - 1; i >= 0; i-- {
		if s := t.spans[i]; !s.Stopped() {
			if err := s.Stop(); err != nil {
				return err
			}
		}
	}
	t.flush(ctx)

	return nil
}

// Apply runs fn inside a span.
//
// The outermost Apply starts the root span (or a child if the root is already
// running) and ends by stopping the whole trace and flushing it. A nested Apply
// opens a child span and stops only that span. Bookkeeping runs even if fn
// panics, and fn's error is returned afterwards.
func (t *Trace) Apply(ctx context.Context, name string, fn func(*Trace) error) error {
	return t.apply(ctx, name, false, func(_ *Span) error {
		if fn == nil {
			return nil
		}

		return fn(t)
	})
}

// ApplyNewSpan is like Apply but always opens a child span and passes it to fn.
func (t *Trace) ApplyNewSpan(ctx context.Context, name string, fn func(*Trace, *Span) error) error {
	return t.apply(ctx, name, true, func(s *Span) error {
		if fn == nil {
			return nil
		}

		return fn(t, s)
	})
}

func (t *Trace) apply(ctx context.Context, name string, newSpan bool, fn func(*Span) error) (err error) {
	if !t.active {
		return fn(nil)
	}
	if err := t.check(); err != nil {
		return err
	}

	outermost := t.depth == 0
	root := t.RootSpan()

	var span *Span
	if outermost && root.State() == SpanCreated {
		if newSpan {
			if err := root.Start(""); err != nil {
				return err
			}
			span, err = t.StartNewSpan(name)
		} else {
			err = root.Start(name)
			span = root
		}
	} else {
		span, err = t.StartNewSpan(name)
	}
	if err != nil {
		return err
	}

	t.depth++
	defer func() {
		t.depth--
		var stopErr error
		switch {
		case outermost && !t.flushed:
			stopErr = t.Stop(ctx)
		case !outermost && !span.Stopped():
			stopErr = span.Stop()
		}
		if err == nil {
			err = stopErr
		}
	}()

	return fn(span)
}

// Annotate annotates the current span. Empty values are ignored.
func (t *Trace) Annotate(key, value string) error {
	if !t.active {
		return nil
	}
	if err := t.check(); err != nil {
		return err
	}

	return t.CurrentSpan().Annotate(key, value)
}

// ForceAnnotate annotates the current span even when value is empty.
func (t *Trace) ForceAnnotate(key, value string) error {
	if !t.active {
		return nil
	}
	if err := t.check(); err != nil {
		return err
	}

	return t.CurrentSpan().ForceAnnotate(key, value)
}

// PostProcess registers a task on the current span.
func (t *Trace) PostProcess(name string, task Task, opts ...ProcessOption) error {
	if !t.active {
		return nil
	}
	if err := t.check(); err != nil {
		return err
	}

	return t.CurrentSpan().PostProcess(name, task, opts...)
}

// Record serializes the trace. It returns nil for an inactive trace.
func (t *Trace) Record() *Record {
	if !t.active {
		return nil
	}

	rec := &Record{
		ID:            t.id,
		Tainted:       t.reason,
		CurrentSpanID: t.CurrentSpan().IDString(),
		Spans:         make([]SpanRecord, 0, len(t.spans)),
	}

	var total time.Duration
	for i, s := range t.spans {
		rec.Spans = append(rec.Spans, newSpanRecord(s, i == 0))
		total += s.processingTime
	}
	if t.logInstrumentationTime {
		ns := total.Nanoseconds()
		rec.Spans[0].InstrumentationTime = &ns
	}

	return rec
}

func (t *Trace) newSpan(parentID string) *Span {
	s := NewSpan(
		WithSpanParent(parentID),
		WithSpanTraceID(t.id),
		WithSpanLogger(t.logger),
	)
	s.metrics = t.metrics
	s.onStop = t.bump

	return s
}

// bump moves the cursor to the nearest in-progress span created before the
// stopped one. The cursor only moves when the current span stops.
func (t *Trace) bump(stopped *Span) {
	if t.spans[t.current] != stopped {
		return
	}
	for i := t.current - 1; i >= 0; i-- {
		if t.spans[i].InProgress() {
			t.current = i

			return
		}
	}
}

func (t *Trace) flush(ctx context.Context) {
	if t.flushed {
		return
	}
	t.flushed = true

	rec := t.Record()
	if t.sink == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("telemetry: sink panicked",
					zap.String("trace_id", t.id),
					zap.Any("panic", r),
				)
			}
		}()
		t.sink.Process(ctx, rec)
	}()
	t.metrics.traceFlushed(ctx)
}
