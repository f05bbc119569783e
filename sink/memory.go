package sink

import (
	"context"
	"sync"

	"github.com/arloliu/telemetry"
)

// Memory keeps every record in process.
type Memory struct {
	mu      sync.Mutex
	records []*telemetry.Record
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Name implements Backend.
func (m *Memory) Name() string { return "memory" }

// Process implements Backend.
func (m *Memory) Process(_ context.Context, rec *telemetry.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)

	return nil
}

// Records returns a copy of the stored records in delivery order.
func (m *Memory) Records() []*telemetry.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*telemetry.Record, len(m.records))
	copy(out, m.records)

	return out
}

// Reset drops all stored records.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
}

// Close implements Backend.
func (m *Memory) Close(context.Context) error { return nil }
