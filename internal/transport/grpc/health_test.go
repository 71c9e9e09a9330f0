package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHealthServer(t *testing.T, h *HealthReporter) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	s := NewServer(time.Second)
	h.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthReporter_TracksRunOutcome(t *testing.T) {
	h := NewHealthReporter(discardLogger())
	c := startHealthServer(t, h)

	if got := checkStatus(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("liveness = %v, want SERVING", got)
	}
	if got := checkStatus(t, c, SyncService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before first run = %v, want NOT_SERVING", got)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.RunFinished(at, nil)
	if got := checkStatus(t, c, SyncService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after clean run = %v, want SERVING", got)
	}
	if !h.LastRun().Equal(at) {
		t.Fatalf("last run = %v, want %v", h.LastRun(), at)
	}

	h.RunFinished(at.Add(time.Hour), errors.New("remote unavailable"))
	if got := checkStatus(t, c, SyncService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after failed run = %v, want NOT_SERVING", got)
	}

	h.Shutdown()
	if got := checkStatus(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after shutdown = %v, want NOT_SERVING", got)
	}
}

func TestDefaultRequestTimeoutInterceptor(t *testing.T) {
	interceptor := defaultRequestTimeoutInterceptor(50 * time.Millisecond)

	t.Run("adds deadline when missing", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("expected deadline")
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("interceptor error: %v", err)
		}
	})

	t.Run("keeps caller deadline", func(t *testing.T) {
		want := time.Now().Add(time.Hour)
		ctx, cancel := context.WithDeadline(context.Background(), want)
		defer cancel()
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
			got, _ := ctx.Deadline()
			if !got.Equal(want) {
				t.Fatalf("deadline = %v, want %v", got, want)
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("interceptor error: %v", err)
		}
	})
}

func TestShutdown_StopsServer(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	s := NewServer(time.Second)
	NewHealthReporter(discardLogger()).Register(s)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	Shutdown(discardLogger(), s, time.Second)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Fatalf("Serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
