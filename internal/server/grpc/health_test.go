package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

func startHealth(t *testing.T, hs *health.Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	gs := New(zaptest.NewLogger(t), hs, false)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return healthpb.NewHealthClient(cc)
}

func checkStatus(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestProber_FlipsStatus(t *testing.T) {
	t.Parallel()

	hs := health.NewServer()
	client := startHealth(t, hs)

	var pgDown atomic.Bool
	p := NewProber(hs, zaptest.NewLogger(t), time.Hour)
	p.Add("postgres", func(context.Context) error {
		if pgDown.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	p.Add("redis", func(context.Context) error { return nil })

	if !p.Probe(context.Background()) {
		t.Fatalf("want healthy")
	}
	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("want SERVING, got %v", got)
	}

	pgDown.Store(true)
	if p.Probe(context.Background()) {
		t.Fatalf("want unhealthy")
	}
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("want NOT_SERVING, got %v", got)
	}
	if err := p.Ready(context.Background()); err == nil {
		t.Fatalf("Ready should report the failing check")
	}
}

func TestProber_RunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	hs := health.NewServer()
	client := startHealth(t, hs)
	p := NewProber(hs, nil, time.Hour)
	p.Add("postgres", func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	deadline := time.Now().Add(2 * time.Second)
	for checkStatus(t, client, ServiceName) != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatalf("never became SERVING")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("want NOT_SERVING after shutdown, got %v", got)
	}
}
