package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the overall "" entry.
const ServiceName = "tutoring.v1.BookingService"

// GRPCServer exposes grpc_health_v1 and keeps its status in step with the
// readiness checks.
type GRPCServer struct {
	Server *grpc.Server
	health *health.Server
	checks *Handler
}

func NewGRPCServer(checks *Handler, opts ...grpc.ServerOption) *GRPCServer {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	g := &GRPCServer{Server: srv, health: hs, checks: checks}
	g.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return g
}

// Refresh runs the checks once and publishes the resulting status.
func (g *GRPCServer) Refresh(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if _, ok := g.checks.Run(ctx); !ok {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	g.setStatus(status)
	return status
}

// Watch refreshes the status every interval until ctx is done.
func (g *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	g.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Refresh(ctx)
		}
	}
}

// Stop marks every service NOT_SERVING and stops the server.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.Server.GracefulStop()
}

func (g *GRPCServer) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}
