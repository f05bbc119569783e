package telemetry

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Task is a deferred computation registered with Span.PostProcess.
// Its result becomes an annotation when the span stops.
type Task func() (any, error)

// ProcessOption configures a post-process registration.
type ProcessOption func(*processor)

// IgnoreIfBlank drops the annotation when the task yields nil or an empty string.
func IgnoreIfBlank() ProcessOption {
	return func(p *processor) {
		p.ignoreIfBlank = true
	}
}

// processor runs one Task on its own goroutine from registration until it is
// joined by resolve. There is no cancellation and no timeout.
type processor struct {
	name          string
	ignoreIfBlank bool
	done          chan struct{}
	value         any
	err           error
}

func startProcessor(name string, task Task, opts ...ProcessOption) *processor {
	p := &processor{
		name: name,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run(task)

	return p
}

func (p *processor) run(task Task) {
	defer close(p.done)
	defer func() {
		if rec := recover(); rec != nil {
			p.err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()

	if task == nil {
		return
	}
	p.value, p.err = task()
}

// resolve blocks until the task has finished and converts its outcome into an
// annotation. The second result is false when the annotation is suppressed.
func (p *processor) resolve(logger *zap.Logger, m *instruments) (Annotation, time.Duration, bool) {
	start := time.Now()
	<-p.done
	wait := time.Since(start)
	m.postProcessWaited(wait)

	a := newAnnotation(p.name, p.value)
	a.ProcessingDuration = &wait

	if p.err != nil {
		logger.Error("telemetry: post-process task failed",
			zap.String("task", p.name),
			zap.Error(p.err),
		)
		m.postProcessFailed(p.name)
		a.Value = processingError
		a.Exception = p.err.Error()

		return a, wait, true
	}

	if p.ignoreIfBlank && isBlank(p.value) {
		return Annotation{}, wait, false
	}

	return a, wait, true
}
