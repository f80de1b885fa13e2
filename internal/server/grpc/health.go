// Package grpcserver exposes the gRPC health endpoint of the caller-ID service.
package grpcserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "authentic_caller.Directory"

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// New builds a gRPC server with the health service registered behind logging and recovery interceptors.
// Reflection is enabled when dev is set.
func New(log *zap.Logger, hs *health.Server, dev bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	return s
}

// Prober periodically runs dependency checks and publishes the result to a health server.
type Prober struct {
	hs       *health.Server
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	names  []string
	checks map[string]Check
}

// NewProber creates a prober; interval defaults to 10s.
func NewProber(hs *health.Server, log *zap.Logger, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Prober{
		hs:       hs,
		log:      log,
		interval: interval,
		timeout:  2 * time.Second,
		checks:   map[string]Check{},
	}
}

// Add registers a named check.
func (p *Prober) Add(name string, c Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.checks[name]; !ok {
		p.names = append(p.names, name)
	}
	p.checks[name] = c
}

// Probe runs every check once and sets SERVING only when all pass.
func (p *Prober) Probe(ctx context.Context) bool {
	ok := true
	for _, nc := range p.snapshot() {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := nc.check(cctx)
		cancel()
		if err != nil {
			ok = false
			p.log.Warn("dependency unhealthy", zap.String("dep", nc.name), zap.Error(err))
		}
	}

	st := healthpb.HealthCheckResponse_SERVING
	if !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	p.hs.SetServingStatus("", st)
	p.hs.SetServingStatus(ServiceName, st)
	return ok
}

// Ready runs the checks without touching the health server.
func (p *Prober) Ready(ctx context.Context) error {
	for _, nc := range p.snapshot() {
		if err := nc.check(ctx); err != nil {
			return fmt.Errorf("%s: %w", nc.name, err)
		}
	}
	return nil
}

type namedCheck struct {
	name  string
	check Check
}

// snapshot returns the checks in registration order.
func (p *Prober) snapshot() []namedCheck {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]namedCheck, 0, len(p.names))
	for _, n := range p.names {
		out = append(out, namedCheck{name: n, check: p.checks[n]})
	}
	return out
}

// Run probes immediately and then every interval until ctx is done,
// after which all services are reported NOT_SERVING.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.hs.Shutdown()
			return
		case <-t.C:
			p.Probe(ctx)
		}
	}
}
