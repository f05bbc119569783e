package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/arloliu/telemetry"
	"github.com/arloliu/telemetry/sink"
)

// healthServer records what the handler saw.
type healthServer struct {
	healthpb.UnimplementedHealthServer

	mu      sync.Mutex
	traceID string
	md      metadata.MD
	fail    bool
}

func (h *healthServer) observe(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.traceID = telemetry.TraceID(ctx)
	h.md, _ = metadata.FromIncomingContext(ctx)
}

func (h *healthServer) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	h.observe(ctx)
	if h.fail {
		return nil, status.Error(codes.Unavailable, "draining")
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func (h *healthServer) Watch(_ *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	h.observe(stream.Context())

	return stream.Send(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
}

func startServer(t *testing.T, impl healthpb.HealthServer, serverOpts []grpc.ServerOption, dialOpts []grpc.DialOption) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer(serverOpts...)
	healthpb.RegisterHealthServer(s, impl)

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	opts := append([]grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOpts...)

	conn, err := grpc.NewClient("passthrough://bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

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

func annotationKeys(sr telemetry.SpanRecord) []string {
	keys := make([]string, 0, len(sr.Annotations))
	for _, a := range sr.Annotations {
		keys = append(keys, a.Key)
	}

	return keys
}

func TestUnaryRoundTrip(t *testing.T) {
	serverReg, serverMem := newRegistry(t, true)
	clientReg, clientMem := newRegistry(t, true)
	impl := &healthServer{}

	conn := startServer(t, impl,
		[]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(serverReg))},
		[]grpc.DialOption{grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(nil))},
	)

	ctx, tr := clientReg.Fetch(context.Background())
	require.NoError(t, tr.Apply(ctx, "caller", func(*telemetry.Trace) error {
		_, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		return err
	}))

	clientRecs := clientMem.Records()
	require.Len(t, clientRecs, 1)
	require.Len(t, clientRecs[0].Spans, 2)
	clientSpan := clientRecs[0].Spans[1]
	assert.Equal(t, "grpc.health.v1.Health/Check", clientSpan.Name)
	assert.Equal(t, []string{AnnotationUserAgent, AnnotationClientSent, AnnotationClientReceived}, annotationKeys(clientSpan))

	serverRecs := serverMem.Records()
	require.Len(t, serverRecs, 1)
	serverRoot := serverRecs[0].Spans[0]
	assert.Equal(t, clientRecs[0].ID, serverRecs[0].ID)
	assert.Equal(t, clientSpan.ID, serverRoot.ParentSpanID)
	assert.Empty(t, serverRecs[0].Tainted)
	assert.Equal(t, "grpc.health.v1.Health/Check", serverRoot.Name)
	assert.Equal(t, []string{AnnotationServerReceived, AnnotationServerSent, AnnotationStatusCode}, annotationKeys(serverRoot))
	assert.Equal(t, codes.OK.String(), serverRoot.Annotations[2].Value)

	assert.Equal(t, clientRecs[0].ID, impl.traceID)
}

func TestUnaryErrorStatus(t *testing.T) {
	serverReg, serverMem := newRegistry(t, true)
	clientReg, clientMem := newRegistry(t, true)

	conn := startServer(t, &healthServer{fail: true},
		[]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(serverReg))},
		[]grpc.DialOption{grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(clientReg))},
	)

	_, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.Equal(t, codes.Unavailable, status.Code(err))

	serverRoot := serverMem.Records()[0].Spans[0]
	assert.Equal(t, codes.Unavailable.String(), serverRoot.Annotations[2].Value)

	clientRecs := clientMem.Records()
	require.Len(t, clientRecs, 1)
	clientSpan := clientRecs[0].Spans[1]
	assert.Contains(t, annotationKeys(clientSpan), AnnotationClientException)
}

func TestUnaryClientKeepsExistingMetadata(t *testing.T) {
	clientReg, _ := newRegistry(t, true)
	impl := &healthServer{}

	conn := startServer(t, impl, nil,
		[]grpc.DialOption{grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(clientReg))},
	)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "tenant", "acme")
	_, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"acme"}, impl.md.Get("tenant"))
	assert.Len(t, impl.md.Get(telemetry.TraceIDHeader), 1)
	assert.Len(t, impl.md.Get(telemetry.SpanIDHeader), 1)
}

func TestUnaryDisabledPassesThrough(t *testing.T) {
	serverReg, serverMem := newRegistry(t, false)
	impl := &healthServer{}

	conn := startServer(t, impl,
		[]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(serverReg))},
		[]grpc.DialOption{grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(nil))},
	)

	_, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Empty(t, serverMem.Records())
	assert.Empty(t, impl.md.Get(telemetry.TraceIDHeader))
}

func TestUnaryServerRequireHeaders(t *testing.T) {
	serverReg, serverMem := newRegistry(t, true)

	conn := startServer(t, &healthServer{},
		[]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(serverReg, WithRequireHeaders()))},
		nil,
	)

	_, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Empty(t, serverMem.Records())

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		telemetry.TraceIDHeader, "5", telemetry.SpanIDHeader, "6")
	_, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	recs := serverMem.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "5", recs[0].ID)
	assert.Equal(t, "6", recs[0].Spans[0].ParentSpanID)
}

func TestStreamServerInterceptor(t *testing.T) {
	serverReg, serverMem := newRegistry(t, true)
	impl := &healthServer{}

	conn := startServer(t, impl,
		[]grpc.ServerOption{grpc.ChainStreamInterceptor(StreamServerInterceptor(serverReg,
			WithSpanNamer(telemetry.PrefixNamer{Prefix: "health"})))},
		nil,
	)

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		telemetry.TraceIDHeader, "10", telemetry.SpanIDHeader, "20")
	stream, err := healthpb.NewHealthClient(conn).Watch(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(serverMem.Records()) == 1 }, time.Second, time.Millisecond)

	rec := serverMem.Records()[0]
	assert.Equal(t, "10", rec.ID)
	assert.Equal(t, "health: grpc.health.v1.Health/Watch", rec.Spans[0].Name)
	assert.Equal(t, "10", impl.traceID)
}
