package metrics

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCMetrics counts calls served by the gRPC health endpoint.
type GRPCMetrics struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
}

func NewGRPCMetrics(meter metric.Meter) (*GRPCMetrics, error) {
	gm := &GRPCMetrics{}

	var err error

	gm.duration, err = meter.Float64Histogram(
		"grpc.server.request_duration",
		metric.WithDescription("gRPC request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	gm.calls, err = meter.Int64Counter(
		"grpc.server.requests_total",
		metric.WithDescription("Total number of gRPC requests, by status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return gm, nil
}

func (gm *GRPCMetrics) RecordCall(ctx context.Context, fullMethod string, duration time.Duration, err error) {
	if gm == nil || gm.calls == nil {
		return
	}

	service, method := splitMethodName(fullMethod)
	attrs := metric.WithAttributes(
		attribute.String("grpc_service", service),
		attribute.String("grpc_method", method),
		attribute.String("grpc_code", status.Code(err).String()),
	)
	gm.duration.Record(ctx, duration.Seconds(), attrs)
	gm.calls.Add(ctx, 1, attrs)
}

func (gm *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		gm.RecordCall(ctx, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// splitMethodName turns "/grpc.health.v1.Health/Check" into its service and method.
func splitMethodName(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[:i], fullMethod[i+1:]
	}
	return "unknown", fullMethod
}
