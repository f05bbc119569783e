// Package scenario defines the span trees replayed by the simulator.
package scenario

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrNameRequired is returned for a scenario or span without a name.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidErrorRate is returned for an error rate outside [0, 1].
	ErrInvalidErrorRate = errors.New("error rate must be within [0, 1]")
)

// Scenario is a named span tree replayed as one trace.
type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	RootSpan    SpanTemplate `yaml:"rootSpan"`
}

// SpanTemplate defines a span and its children.
type SpanTemplate struct {
	Name        string            `yaml:"name"`
	Service     string            `yaml:"service"`
	Kind        SpanKind          `yaml:"kind"`
	Duration    Duration          `yaml:"duration"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
	PostProcess []TaskTemplate    `yaml:"postProcess,omitempty"`
	Children    []SpanTemplate    `yaml:"children,omitempty"`

	// Error simulation
	ErrorRate   float64 `yaml:"errorRate,omitempty"`   // 0.0-1.0
	ErrorStatus string  `yaml:"errorStatus,omitempty"` // exception annotation when triggered
}

// TaskTemplate is a post-process task run while its span is open.
type TaskTemplate struct {
	Name     string   `yaml:"name"`
	Duration Duration `yaml:"duration,omitempty"`
	Result   string   `yaml:"result,omitempty"`
	Fail     string   `yaml:"fail,omitempty"`
}

// SpanKind describes the role of a span. It is recorded as an annotation.
type SpanKind string

const (
	SpanKindServer   SpanKind = "SERVER"
	SpanKindClient   SpanKind = "CLIENT"
	SpanKindProducer SpanKind = "PRODUCER"
	SpanKindConsumer SpanKind = "CONSUMER"
	SpanKindInternal SpanKind = "INTERNAL"
)

// Duration is a wrapper for time.Duration that supports YAML parsing.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)

	return nil
}

// AsDuration converts Duration to time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// SpanCount returns the number of spans in the tree rooted at t.
func (t SpanTemplate) SpanCount() int {
	n := 1
	for _, c := range t.Children {
		n += c.SpanCount()
	}

	return n
}

// Validate checks that the scenario and every span and task in it is named
// and that error rates are probabilities.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: %w", ErrNameRequired)
	}

	return s.RootSpan.validate(s.Name + ": root span")
}

func (t SpanTemplate) validate(path string) error {
	if t.Name == "" {
		return fmt.Errorf("%s: %w", path, ErrNameRequired)
	}
	path += " " + t.Name
	if t.ErrorRate < 0 || t.ErrorRate > 1 {
		return fmt.Errorf("%s: %w", path, ErrInvalidErrorRate)
	}
	for _, task := range t.PostProcess {
		if task.Name == "" {
			return fmt.Errorf("%s: post-process task: %w", path, ErrNameRequired)
		}
	}
	for _, c := range t.Children {
		if err := c.validate(path + " > child"); err != nil {
			return err
		}
	}

	return nil
}

// Registry holds all available scenarios.
var Registry = map[string]*Scenario{}

func init() {
	Register(PaymentScenario())
	Register(HealthCheckScenario())
}

// Register adds a scenario to the registry.
func Register(s *Scenario) {
	Registry[s.Name] = s
}

// Get retrieves a scenario by name.
func Get(name string) (*Scenario, bool) {
	s, ok := Registry[name]
	return s, ok
}

// List returns all available scenario names, sorted.
func List() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
