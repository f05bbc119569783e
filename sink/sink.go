package sink

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/arloliu/telemetry"
)

const instrumentationName = "github.com/arloliu/telemetry/sink"

// Backend delivers a record to one destination.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Process(ctx context.Context, rec *telemetry.Record) error
	Close(ctx context.Context) error
}

// Sink adapts a Backend to telemetry.Sink.
type Sink struct {
	backend  Backend
	logger   *zap.Logger
	failures metric.Int64Counter
}

var _ telemetry.Sink = (*Sink)(nil)

type options struct {
	mp           metric.MeterProvider
	httpClient   *http.Client
	spanExporter sdktrace.SpanExporter
	jetStream    Publisher
}

// Option configures New and Wrap.
type Option func(*options)

// WithMeterProvider sets the meter provider for sink failure counts and
// HTTP client metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// WithHTTPClient replaces the client used by the HTTP backend.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithSpanExporter replaces the exporter built from the otlp config.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.spanExporter = exp
	}
}

// WithPublisher replaces the JetStream connection dialed from sink.natsURL.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.jetStream = p
	}
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}

	return o
}

// Wrap returns a Sink delivering to b.
func Wrap(b Backend, logger *zap.Logger, opts ...Option) *Sink {
	o := applyOptions(opts)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sink{
		backend:  b,
		logger:   logger,
		failures: newFailureCounter(o.mp),
	}
}

func newFailureCounter(mp metric.MeterProvider) metric.Int64Counter {
	c, err := mp.Meter(instrumentationName).Int64Counter("telemetry.sink.failures",
		metric.WithDescription("Records a sink backend failed to deliver"),
		metric.WithUnit("{trace}"),
	)
	if err != nil {
		otel.Handle(err)
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("telemetry.sink.failures")
	}

	return c
}

// New builds the sink selected by cfg.Sink. The first configured backend in
// the order log file, HTTP endpoint, exporter, NATS subject, in-memory wins.
//
// Returns telemetry.ErrMissingSinkDevice when nothing is configured and
// telemetry.ErrSinkDeviceNotFound when the log file cannot be opened.
func New(ctx context.Context, cfg *telemetry.Config, logger *zap.Logger, opts ...Option) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := applyOptions(opts)
	sc := cfg.GetSinkConfig()

	var (
		b   Backend
		err error
	)
	switch {
	case strings.TrimSpace(sc.LogFile) != "":
		b, err = NewLogFile(sc.LogFile)
	case strings.TrimSpace(sc.HTTPEndpoint) != "":
		client := o.httpClient
		if client == nil {
			client = newHTTPClient(sc.HTTPTimeout, o.mp)
		}
		b, err = NewHTTP(sc.HTTPEndpoint, client)
	case strings.TrimSpace(sc.Exporter) != "":
		b, err = newExporterFromConfig(ctx, cfg, o.spanExporter, logger)
	case strings.TrimSpace(sc.NATSSubject) != "":
		if o.jetStream != nil {
			b = NewNATS(o.jetStream, sc.NATSSubject)
		} else {
			b, err = DialNATS(sc.NATSURL, sc.NATSSubject)
		}
	case sc.IsInMemory():
		b = NewMemory()
	default:
		return nil, telemetry.ErrMissingSinkDevice
	}
	if err != nil {
		return nil, err
	}

	return Wrap(b, logger, opts...), nil
}

// FromConfig is a telemetry.SinkFactory built on New.
func FromConfig(ctx context.Context, cfg *telemetry.Config, logger *zap.Logger) (telemetry.Sink, error) {
	s, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Backend returns the wrapped backend.
func (s *Sink) Backend() Backend { return s.backend }

// Process delivers rec. Failures are logged with the encoded record so the
// trace can be replayed by hand.
func (s *Sink) Process(ctx context.Context, rec *telemetry.Record) {
	if rec == nil {
		return
	}
	if err := s.deliver(ctx, rec); err != nil {
		s.failed(ctx, rec, err)
	}
}

func (s *Sink) deliver(ctx context.Context, rec *telemetry.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	return s.backend.Process(ctx, rec)
}

func (s *Sink) failed(ctx context.Context, rec *telemetry.Record, err error) {
	fields := []zap.Field{
		zap.String("backend", s.backend.Name()),
		zap.String("trace_id", rec.ID),
		zap.Error(err),
	}
	if data, jerr := rec.JSON(); jerr == nil {
		fields = append(fields, zap.ByteString("record", data))
	} else {
		fields = append(fields, zap.NamedError("encode_error", jerr))
	}
	s.logger.Error("telemetry: sink failed to deliver trace", fields...)
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", s.backend.Name())))
}

// Close releases the backend's resources, flushing any buffered output.
func (s *Sink) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}
