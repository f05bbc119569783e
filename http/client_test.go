package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/arloliu/telemetry"
)

func TestNewClient(t *testing.T) {
	reg, mem := newRegistry(t, true)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRegistry(reg), WithTraceOptions(WithMeterProvider(mp)))

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Len(t, mem.Records(), 1)
	assert.Equal(t, mem.Records()[0].ID, got.Get(telemetry.TraceIDHeader))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.NotEmpty(t, rm.ScopeMetrics)
}

func TestNewClientTunesTransport(t *testing.T) {
	client := NewClient(
		WithTransport(&http.Transport{}),
		WithClientConfig(ClientConfig{
			DialTimeout:           time.Second,
			TLSHandshakeTimeout:   2 * time.Second,
			ResponseHeaderTimeout: 3 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   5,
			MaxConnsPerHost:       20,
			IdleConnTimeout:       30 * time.Second,
		}),
		WithTimeout(5*time.Second),
	)
	assert.Equal(t, 5*time.Second, client.Timeout)

	tr, ok := client.Transport.(*transport)
	require.True(t, ok)
	base, ok := tr.base.(*http.Transport)
	require.True(t, ok)

	assert.NotNil(t, base.DialContext)
	assert.Equal(t, 2*time.Second, base.TLSHandshakeTimeout)
	assert.Equal(t, 3*time.Second, base.ResponseHeaderTimeout)
	assert.Equal(t, 10, base.MaxIdleConns)
	assert.Equal(t, 5, base.MaxIdleConnsPerHost)
	assert.Equal(t, 20, base.MaxConnsPerHost)
	assert.Equal(t, 30*time.Second, base.IdleConnTimeout)
}

func TestTuneKeepsDefaults(t *testing.T) {
	got, ok := tune(nil, ClientConfig{}).(*http.Transport)
	require.True(t, ok)
	def, ok := http.DefaultTransport.(*http.Transport)
	require.True(t, ok)

	assert.NotSame(t, def, got)
	assert.Equal(t, def.MaxIdleConns, got.MaxIdleConns)
	assert.Equal(t, def.IdleConnTimeout, got.IdleConnTimeout)
	assert.Equal(t, def.TLSHandshakeTimeout, got.TLSHandshakeTimeout)
}

func TestTuneOpaqueRoundTripper(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	_, ok := tune(rt, ClientConfig{MaxIdleConns: 3}).(roundTripFunc)
	assert.True(t, ok)
}
