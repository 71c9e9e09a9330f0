package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SyncService is the health service name that tracks the outcome of the most
// recent sync run. The empty service name reports process liveness.
const SyncService = "calsync.Sync"

// HealthReporter exposes sync run outcomes through the standard gRPC health
// service.
type HealthReporter struct {
	srv *health.Server
	log *slog.Logger

	mu      sync.Mutex
	serving bool
	lastRun time.Time
}

func NewHealthReporter(log *slog.Logger) *HealthReporter {
	if log == nil {
		log = slog.Default()
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(SyncService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		srv: srv,
		log: log.With(slog.String("component", "grpc.health")),
	}
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// RunFinished records the result of one sync run. The sync service is
// SERVING after a clean run and NOT_SERVING after a failed one.
func (h *HealthReporter) RunFinished(at time.Time, runErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	serving := runErr == nil
	h.lastRun = at
	if serving == h.serving {
		return
	}
	h.serving = serving

	if serving {
		h.srv.SetServingStatus(SyncService, healthpb.HealthCheckResponse_SERVING)
		h.log.Info("sync healthy", slog.Time("run_at", at))
		return
	}
	h.srv.SetServingStatus(SyncService, healthpb.HealthCheckResponse_NOT_SERVING)
	h.log.Warn("sync unhealthy", slog.Time("run_at", at), slog.Any("err", runErr))
}

// LastRun returns when the most recent run finished, or the zero time.
func (h *HealthReporter) LastRun() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastRun
}

// Shutdown flips every service to NOT_SERVING so probes fail while the
// server drains.
func (h *HealthReporter) Shutdown() {
	h.srv.Shutdown()
}

// NewServer returns a gRPC server that bounds every unary call by timeout
// unless the caller set a deadline.
func NewServer(timeout time.Duration) *grpc.Server {
	return grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(timeout)),
	)
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// Shutdown stops s gracefully, forcing it down once timeout elapses.
func Shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
