package sampler

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the name the sampler reports under on its health socket.
const HealthService = "als_correction.Sampler"

// DefaultUnhealthyAfter is the number of consecutive failed captures after
// which the sampler reports NOT_SERVING.
const DefaultUnhealthyAfter = 3

const healthStopGrace = 2 * time.Second

// Health publishes the sampler's capture health over the standard gRPC
// health protocol. Observe is meant to be wired to ServiceConfig.OnCapture.
type Health struct {
	srv            *health.Server
	unhealthyAfter int

	mu       sync.Mutex
	failures int
}

// NewHealth creates a health reporter that starts out SERVING.
func NewHealth(unhealthyAfter int) *Health {
	if unhealthyAfter <= 0 {
		unhealthyAfter = DefaultUnhealthyAfter
	}
	h := &Health{srv: health.NewServer(), unhealthyAfter: unhealthyAfter}
	h.srv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Observe records one capture attempt.
func (h *Health) Observe(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ok {
		if h.failures >= h.unhealthyAfter {
			slog.Info("screen capture recovered")
		}
		h.failures = 0
		h.srv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.failures++
	if h.failures == h.unhealthyAfter {
		slog.Warn("screen capture failing, reporting not serving", "failures", h.failures)
		h.srv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Register adds the health service to a gRPC server.
func (h *Health) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// ListenAndServe serves the health protocol on a unix socket until ctx is
// done.
func (h *Health) ListenAndServe(ctx context.Context, path string) error {
	ln, err := listenUnix(ctx, path)
	if err != nil {
		return err
	}
	return h.Serve(ctx, ln)
}

// Serve serves the health protocol on ln until ctx is done.
func (h *Health) Serve(ctx context.Context, ln net.Listener) error {
	gs := grpc.NewServer()
	h.Register(gs)

	stop := context.AfterFunc(ctx, func() {
		h.srv.Shutdown()
		// Watch streams never end on their own.
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(healthStopGrace):
			gs.Stop()
		}
	})
	defer stop()

	slog.Info("sampler health listening", "addr", ln.Addr().String())
	if err := gs.Serve(ln); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
