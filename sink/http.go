package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/arloliu/telemetry"
)

// DefaultHTTPPath is appended to endpoints given without a path.
const DefaultHTTPPath = "/trace"

// ErrUnexpectedStatus is returned when the collector answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("sink: unexpected HTTP status")

// HTTP posts each trace as JSON to a collector endpoint.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates an HTTP backend. endpoint may omit the scheme ("http" is
// assumed) and the path (DefaultHTTPPath is used).
func NewHTTP(endpoint string, client *http.Client) (*HTTP, error) {
	u, err := endpointURL(endpoint)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = newHTTPClient(0, nil)
	}

	return &HTTP{url: u, client: client}, nil
}

func endpointURL(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("sink: invalid HTTP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("sink: invalid HTTP endpoint %q: missing host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultHTTPPath
	}

	return u.String(), nil
}

// newHTTPClient records client metrics through otelhttp. The sink never
// traces its own requests with OTel.
func newHTTPClient(timeout time.Duration, mp metric.MeterProvider) *http.Client {
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tracenoop.NewTracerProvider()),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
	}
}

// Name implements Backend.
func (h *HTTP) Name() string { return "http" }

// URL returns the resolved endpoint.
func (h *HTTP) URL() string { return h.url }

// Process implements Backend.
func (h *HTTP) Process(ctx context.Context, rec *telemetry.Record) error {
	data, err := rec.JSON()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return nil
}

// Close implements Backend.
func (h *HTTP) Close(context.Context) error {
	h.client.CloseIdleConnections()
	return nil
}
