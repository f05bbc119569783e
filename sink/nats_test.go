package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/telemetry"
)

type mockPublisher struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (m *mockPublisher) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	m.msgs = append(m.msgs, msg)

	return &jetstream.PubAck{Stream: "TRACES", Sequence: uint64(len(m.msgs))}, nil
}

func TestNATSPublishesRecord(t *testing.T) {
	pub := &mockPublisher{}
	n := NewNATS(pub, "traces.checkout")

	require.NoError(t, n.Process(context.Background(), sampleRecord()))
	require.Len(t, pub.msgs, 1)

	msg := pub.msgs[0]
	assert.Equal(t, "traces.checkout", msg.Subject)
	assert.Equal(t, "1234", msg.Header.Get(telemetry.TraceIDHeader))
	assert.Equal(t, "11", msg.Header.Get(telemetry.SpanIDHeader))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "1234", body["id"])
	assert.NoError(t, n.Close(context.Background()))
}

func TestNATSPublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("no responders")}
	n := NewNATS(pub, "traces")
	require.Error(t, n.Process(context.Background(), sampleRecord()))
}

func TestDialNATSUnreachable(t *testing.T) {
	_, err := DialNATS("nats://127.0.0.1:1", "traces")
	require.Error(t, err)
}
