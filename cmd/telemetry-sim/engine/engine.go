// Package engine replays scenarios through a telemetry Registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/arloliu/telemetry"
	"github.com/arloliu/telemetry/cmd/telemetry-sim/scenario"
	"github.com/arloliu/telemetry/sink"
)

// Annotation keys written on every simulated span.
const (
	AnnotationService   = "service"
	AnnotationKind      = "kind"
	AnnotationException = "exception"
)

// ErrNotAdmitted is returned when the registry declined to record a trace.
var ErrNotAdmitted = errors.New("trace not admitted")

// Engine generates traces from scenarios.
type Engine struct {
	reg       *telemetry.Registry
	jitterPct int
	timeScale float64
	float64n  func() float64
}

// Config holds engine configuration.
type Config struct {
	Telemetry *telemetry.Config
	JitterPct int
	// TimeScale multiplies every simulated duration. Zero skips sleeping.
	TimeScale float64
}

// New builds a Registry from cfg.Telemetry, with its sink chosen by the
// sink configuration, and returns an Engine driving it.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger, err := telemetry.NewErrorLogger(cfg.Telemetry.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create error logger: %w", err)
	}

	reg, err := telemetry.NewRegistry(ctx, cfg.Telemetry,
		telemetry.WithLogger(logger),
		telemetry.WithSinkFactory(sink.FromConfig),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	if !reg.Runner().Enabled() {
		return nil, errors.New("tracing is disabled, check the sink configuration")
	}

	return NewWithRegistry(reg, cfg), nil
}

// NewWithRegistry returns an Engine driving an existing registry.
func NewWithRegistry(reg *telemetry.Registry, cfg Config) *Engine {
	return &Engine{
		reg:       reg,
		jitterPct: cfg.JitterPct,
		timeScale: cfg.TimeScale,
		float64n:  rand.Float64,
	}
}

// Registry returns the registry the engine drives.
func (e *Engine) Registry() *telemetry.Registry { return e.reg }

// Shutdown releases the sink.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.reg.Close(ctx)
}

// GenerateTrace replays s as one trace and returns its id.
func (e *Engine) GenerateTrace(ctx context.Context, s *scenario.Scenario) (string, error) {
	ctx, tr := e.reg.Fetch(ctx, telemetry.WithName(s.RootSpan.Name))
	if !tr.Active() {
		return "", ErrNotAdmitted
	}
	id := tr.ID()

	err := tr.Apply(ctx, s.RootSpan.Name, func(tr *telemetry.Trace) error {
		return e.generateSpan(ctx, tr, tr.CurrentSpan(), s.RootSpan)
	})

	return id, err
}

// generateSpan fills span from tmpl and recursively generates its children.
func (e *Engine) generateSpan(ctx context.Context, tr *telemetry.Trace, span *telemetry.Span, tmpl scenario.SpanTemplate) error {
	_ = span.Annotate(AnnotationService, tmpl.Service)
	_ = span.Annotate(AnnotationKind, string(tmpl.Kind))

	keys := make([]string, 0, len(tmpl.Annotations))
	for k := range tmpl.Annotations {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := tmpl.Annotations[k]; v != "" {
			_ = span.Annotate(k, v)
		} else {
			_ = span.ForceAnnotate(k, "")
		}
	}

	for _, task := range tmpl.PostProcess {
		if err := span.PostProcess(task.Name, e.task(task)); err != nil {
			return err
		}
	}

	if tmpl.ErrorRate > 0 && e.float64n() < tmpl.ErrorRate {
		_ = span.Annotate(AnnotationException, tmpl.ErrorStatus)
	}

	for _, child := range tmpl.Children {
		err := tr.ApplyNewSpan(ctx, child.Name, func(tr *telemetry.Trace, s *telemetry.Span) error {
			return e.generateSpan(ctx, tr, s, child)
		})
		if err != nil {
			return err
		}
	}

	e.sleep(tmpl.Duration.AsDuration())

	return nil
}

func (e *Engine) task(t scenario.TaskTemplate) telemetry.Task {
	return func() (any, error) {
		e.sleep(t.Duration.AsDuration())
		if t.Fail != "" {
			return nil, errors.New(t.Fail)
		}

		return t.Result, nil
	}
}

func (e *Engine) sleep(d time.Duration) {
	if e.timeScale <= 0 {
		return
	}
	time.Sleep(time.Duration(float64(e.applyJitter(d)) * e.timeScale))
}

// applyJitter adds random timing variation to a duration.
func (e *Engine) applyJitter(d time.Duration) time.Duration {
	if e.jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * float64(e.jitterPct) / 100.0
	offset := (e.float64n() * 2 * jitter) - jitter

	return d + time.Duration(offset)
}
