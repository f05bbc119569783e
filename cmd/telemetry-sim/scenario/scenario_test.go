package scenario

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationYAML(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		out   string
	}{
		{"100ms", 100 * time.Millisecond, "100ms"},
		{"90s", 90 * time.Second, "1m30s"},
		{"0s", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			require.NoError(t, d.UnmarshalYAML(func(v any) error {
				*v.(*string) = tt.input
				return nil
			}))
			assert.Equal(t, tt.want, d.AsDuration())

			out, err := d.MarshalYAML()
			require.NoError(t, err)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestDurationYAMLErrors(t *testing.T) {
	var d Duration
	err := d.UnmarshalYAML(func(v any) error {
		*v.(*string) = "soon"
		return nil
	})
	require.Error(t, err)

	decodeErr := errors.New("not a string")
	assert.ErrorIs(t, d.UnmarshalYAML(func(any) error { return decodeErr }), decodeErr)
}

func TestBuiltinScenarios(t *testing.T) {
	assert.Equal(t, []string{"health-check", "payment"}, List())

	for _, name := range List() {
		s, ok := Get(name)
		require.True(t, ok)
		assert.Equal(t, name, s.Name)
		assert.NotEmpty(t, s.Description)
		assert.NoError(t, s.Validate())
	}

	s, ok := Get("checkout")
	assert.False(t, ok)
	assert.Nil(t, s)
}

func TestRegister(t *testing.T) {
	custom := &Scenario{
		Name:     "custom",
		RootSpan: SpanTemplate{Name: "GET /ping", Kind: SpanKindServer},
	}
	Register(custom)
	t.Cleanup(func() { delete(Registry, custom.Name) })

	s, ok := Get("custom")
	require.True(t, ok)
	assert.Same(t, custom, s)
	assert.Contains(t, List(), "custom")
}

func TestValidate(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{Name: "s", RootSpan: SpanTemplate{
			Name:        "root",
			PostProcess: []TaskTemplate{{Name: "score"}},
			Children:    []SpanTemplate{{Name: "child", ErrorRate: 1}},
		}}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Scenario)
		err    error
		path   string
	}{
		{"scenario name", func(s *Scenario) { s.Name = "" }, ErrNameRequired, "scenario"},
		{"child name", func(s *Scenario) { s.RootSpan.Children[0].Name = "" }, ErrNameRequired, "s: root span root > child"},
		{"task name", func(s *Scenario) { s.RootSpan.PostProcess[0].Name = "" }, ErrNameRequired, "post-process task"},
		{"negative rate", func(s *Scenario) { s.RootSpan.ErrorRate = -0.1 }, ErrInvalidErrorRate, "s: root span root"},
		{"child rate", func(s *Scenario) { s.RootSpan.Children[0].ErrorRate = 2 }, ErrInvalidErrorRate, "child child"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			require.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestPaymentScenario(t *testing.T) {
	s := PaymentScenario()

	assert.Equal(t, 7, s.RootSpan.SpanCount())
	assert.Equal(t, 1, HealthCheckScenario().RootSpan.SpanCount())
	assert.Equal(t, SpanKindServer, s.RootSpan.Kind)
	require.Len(t, s.RootSpan.Children, 2)

	process := s.RootSpan.Children[0]
	assert.Equal(t, "ProcessPayment", process.Name)
	require.Len(t, process.PostProcess, 1)
	assert.Equal(t, "cart.checksum", process.PostProcess[0].Name)

	charge := process.Children[1]
	assert.Equal(t, "ChargeCard", charge.Name)
	assert.InDelta(t, 0.05, charge.ErrorRate, 1e-9)
	assert.Equal(t, "payment declined", charge.ErrorStatus)
}
