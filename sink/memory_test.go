package sink

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Process(ctx, sampleRecord())
		}()
	}
	wg.Wait()

	recs := m.Records()
	require.Len(t, recs, 10)
	recs[0] = nil
	assert.NotNil(t, m.Records()[0])

	m.Reset()
	assert.Empty(t, m.Records())
	assert.NoError(t, m.Close(ctx))
}
