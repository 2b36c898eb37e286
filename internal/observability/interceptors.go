package observability

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

// UnaryServerInterceptor logs every control call.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		event := logger.Info()
		if err != nil {
			event = logger.Warn()
		}
		event.
			Str("method", info.FullMethod).
			Str("peer", peerAddr(ctx)).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor tracks watch streams in metrics and logs their end.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	logger := logging.WithComponent("grpc")
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		m.RecordStreamStart()

		err := handler(srv, ss)

		duration := time.Since(start)
		success := err == nil
		m.RecordStreamEnd(success, duration.Seconds())

		st, _ := status.FromError(err)
		logger.Info().
			Str("method", info.FullMethod).
			Str("peer", peerAddr(ss.Context())).
			Str("code", st.Code().String()).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
