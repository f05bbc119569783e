package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arloliu/telemetry"
)

// serverTrace fetches the trace for an inbound call from its metadata.
func serverTrace(ctx context.Context, reg *telemetry.Registry, o options, name string) (context.Context, *telemetry.Trace) {
	md, _ := metadata.FromIncomingContext(ctx)

	traceOpts := []telemetry.TraceOption{
		telemetry.FromHeaders(telemetry.ExtractGRPC(md)),
		telemetry.WithName(name),
	}
	if o.requireHeaders {
		traceOpts = append(traceOpts, telemetry.RequireHeaders())
	}

	return reg.Fetch(ctx, traceOpts...)
}

// UnaryServerInterceptor applies a trace around each unary call.
func UnaryServerInterceptor(reg *telemetry.Registry, opts ...Option) grpc.UnaryServerInterceptor {
	o := applyOptions(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		name := o.namer.Name(telemetry.NameRPC("", info.FullMethod))
		ctx, tr := serverTrace(ctx, reg, o, name)
		if !tr.Active() {
			return handler(ctx, req)
		}

		var (
			resp any
			err  error
		)
		_ = tr.Apply(ctx, name, func(tr *telemetry.Trace) error {
			_ = tr.ForceAnnotate(AnnotationServerReceived, "")
			resp, err = handler(ctx, req)
			_ = tr.ForceAnnotate(AnnotationServerSent, "")
			_ = tr.Annotate(AnnotationStatusCode, status.Code(err).String())

			return nil
		})

		return resp, err
	}
}

// StreamServerInterceptor applies a trace around each streaming call. The
// trace spans the whole stream.
func StreamServerInterceptor(reg *telemetry.Registry, opts ...Option) grpc.StreamServerInterceptor {
	o := applyOptions(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		name := o.namer.Name(telemetry.NameRPC("", info.FullMethod))
		ctx, tr := serverTrace(ss.Context(), reg, o, name)
		wrapped := &serverStream{ServerStream: ss, ctx: ctx}
		if !tr.Active() {
			return handler(srv, wrapped)
		}

		var err error
		_ = tr.Apply(ctx, name, func(tr *telemetry.Trace) error {
			_ = tr.ForceAnnotate(AnnotationServerReceived, "")
			err = handler(srv, wrapped)
			_ = tr.ForceAnnotate(AnnotationServerSent, "")
			_ = tr.Annotate(AnnotationStatusCode, status.Code(err).String())

			return nil
		})

		return err
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }

// UnaryClientInterceptor runs each call in a child span of the trace in its
// context and sends the trace metadata. Calls without a trace start one from
// reg; with a nil reg they pass through.
func UnaryClientInterceptor(reg *telemetry.Registry, opts ...Option) grpc.UnaryClientInterceptor {
	o := applyOptions(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		name := o.namer.Name(telemetry.NameRPC("", method))

		tr := telemetry.Current(ctx)
		if tr == nil && reg != nil {
			ctx, tr = reg.Fetch(ctx, telemetry.WithName(name))
		}
		if tr == nil || !tr.Active() {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}

		var err error
		_ = tr.ApplyNewSpan(ctx, name, func(tr *telemetry.Trace, span *telemetry.Span) error {
			_ = span.Annotate(AnnotationUserAgent, o.userAgent)
			_ = span.ForceAnnotate(AnnotationClientSent, "")

			md, _ := metadata.FromOutgoingContext(ctx)
			md = md.Copy()
			telemetry.InjectGRPC(tr.Headers(), md)

			err = invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, callOpts...)
			if err != nil {
				_ = span.Annotate(AnnotationClientException, status.Code(err).String())
			}
			_ = span.ForceAnnotate(AnnotationClientReceived, "")

			return nil
		})

		return err
	}
}
