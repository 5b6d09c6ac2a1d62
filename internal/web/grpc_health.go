package web

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported next to the overall status.
const HealthService = "carbon.Dashboard"

// ServeHealth runs the standard gRPC health service on lis until ctx is
// cancelled.
func ServeHealth(ctx context.Context, lis net.Listener, logger *zap.Logger) error {
	gs := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		gs.GracefulStop()
	}()

	logger.Info("gRPC health service listening", zap.String("addr", lis.Addr().String()))
	if err := gs.Serve(lis); err != nil {
		return fmt.Errorf("gRPC health server: %w", err)
	}
	return nil
}

// ListenHealth opens the health listener on port of all interfaces.
func ListenHealth(port int) (net.Listener, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return lis, nil
}
