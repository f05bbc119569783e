// Package grpc propagates telemetry traces across gRPC boundaries.
//
// The trace and span ids travel in the x-telemetry-traceid and
// x-telemetry-spanid metadata keys.
//
// # gRPC Server
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(telemetrygrpc.UnaryServerInterceptor(reg)),
//	    grpc.ChainStreamInterceptor(telemetrygrpc.StreamServerInterceptor(reg)),
//	    grpc.StatsHandler(telemetrygrpc.ServerHandler(meterProvider)),
//	)
//
// # gRPC Client
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithChainUnaryInterceptor(telemetrygrpc.UnaryClientInterceptor(reg)),
//	    grpc.WithStatsHandler(telemetrygrpc.ClientHandler(meterProvider)),
//	)
//
// The stats handlers only record RPC metrics.
package grpc
