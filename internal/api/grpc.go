package api

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

// HealthServiceName is the service name reported over gRPC health checks.
const HealthServiceName = "incident.Analysis"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer exposes the standard gRPC health protocol for load
// balancers and orchestrators. Status follows the case store.
type HealthServer struct {
	store    Pinger
	interval time.Duration

	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	running  atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHealthServer builds a health server that re-checks store every
// interval once started.
func NewHealthServer(store Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	h := &HealthServer{
		store:    store,
		interval: interval,
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		stopCh:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.health.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Refresh pings the store and updates the serving status of both the
// named service and the server as a whole.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.store != nil {
		if err := h.store.PingContext(ctx); err != nil {
			monitoring.Warnf("[gRPC] health check failed: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus(HealthServiceName, status)
	h.health.SetServingStatus("", status)
	return status
}

// Start listens on addr and serves until Stop.
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.Serve(lis)
}

// Serve serves on an existing listener in the background.
func (h *HealthServer) Serve(lis net.Listener) error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("health server already running")
	}
	h.listener = lis
	h.Refresh(context.Background())

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		monitoring.Logf("[gRPC] health service listening on %s", lis.Addr())
		if err := h.server.Serve(lis); err != nil && h.running.Load() {
			monitoring.Warnf("[gRPC] server error: %v", err)
		}
	}()
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), h.interval)
				h.Refresh(ctx)
				cancel()
			}
		}
	}()
	return nil
}

// Stop marks the service as shutting down and stops the server gracefully.
func (h *HealthServer) Stop() {
	if !h.running.CompareAndSwap(true, false) {
		return
	}
	h.health.Shutdown()
	close(h.stopCh)
	h.server.GracefulStop()
	h.wg.Wait()
	monitoring.Logf("[gRPC] health service stopped")
}
