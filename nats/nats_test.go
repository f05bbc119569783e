package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/telemetry"
	"github.com/arloliu/telemetry/sink"
)

// mockMsg implements jetstream.Msg for testing and records how it was settled.
type mockMsg struct {
	subject  string
	data     []byte
	headers  nats.Header
	metadata *jetstream.MsgMetadata

	acked  bool
	naked  bool
	termed bool
}

func (m *mockMsg) Subject() string                           { return m.subject }
func (m *mockMsg) Data() []byte                              { return m.data }
func (m *mockMsg) Headers() nats.Header                      { return m.headers }
func (*mockMsg) Reply() string                               { return "" }
func (m *mockMsg) Ack() error                                { m.acked = true; return nil }
func (*mockMsg) DoubleAck(_ context.Context) error           { return nil }
func (m *mockMsg) Nak() error                                { m.naked = true; return nil }
func (*mockMsg) NakWithDelay(_ time.Duration) error          { return nil }
func (m *mockMsg) Term() error                               { m.termed = true; return nil }
func (*mockMsg) TermWithReason(_ string) error               { return nil }
func (*mockMsg) InProgress() error                           { return nil }
func (m *mockMsg) Metadata() (*jetstream.MsgMetadata, error) { return m.metadata, nil }

func newRegistry(t *testing.T, enabled bool) (*telemetry.Registry, *sink.Memory) {
	t.Helper()

	mem := sink.NewMemory()
	reg, err := telemetry.NewRegistry(context.Background(),
		&telemetry.Config{Enabled: &enabled, SampleRatio: "100"},
		telemetry.WithSink(sink.Wrap(mem, nil)),
		telemetry.WithRandIntN(func(int) int { return 0 }),
	)
	require.NoError(t, err)

	return reg, mem
}
