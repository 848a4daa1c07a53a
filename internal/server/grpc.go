package server

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// EngineService is the gRPC health service name reporting whether the
// engine ticks are running. The empty service reports the process.
const EngineService = "streamscope.Engine"

// HealthServer serves the standard gRPC health protocol for orchestrators
// that probe over gRPC instead of HTTP.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
}

func newHealthServer() *HealthServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(EngineService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	reflection.Register(grpcServer)

	return &HealthServer{grpc: grpcServer, health: healthServer}
}

// Listen binds addr and serves in the background.
func (h *HealthServer) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	h.listener = lis

	go func() {
		log.Info("grpc health listening", "address", lis.Addr().String())
		if err := h.grpc.Serve(lis); err != nil {
			log.Error("grpc server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (h *HealthServer) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// SetEngineServing updates the engine service status.
func (h *HealthServer) SetEngineServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(EngineService, status)
}

// Stop marks every service as not serving and stops gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
