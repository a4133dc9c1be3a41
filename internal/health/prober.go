// Package health tracks upstream availability and exposes it over gRPC health checks.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/metrics"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AssistantService is the service name reported to gRPC health clients.
const AssistantService = "assistant"

// Checker probes one upstream.
type Checker interface {
	CheckHealth(ctx context.Context) bool
}

// Status is the last probe result.
type Status struct {
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checked_at"`
}

// Prober periodically checks the assistant and publishes the result to the
// gRPC health server and the assistant_up gauge.
type Prober struct {
	checker  Checker
	server   *health.Server
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewProber creates a prober. The gRPC health server starts as NOT_SERVING
// for the assistant until the first probe completes.
func NewProber(checker Checker, interval time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(AssistantService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Prober{
		checker:  checker,
		server:   srv,
		interval: interval,
		logger:   logger.With("component", "health_prober"),
	}
}

// Server returns the gRPC health server to register on a grpc.Server.
func (p *Prober) Server() *health.Server {
	return p.server
}

// Status returns the last probe result.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Probe runs one check and publishes its result.
func (p *Prober) Probe(ctx context.Context) Status {
	up := p.checker.CheckHealth(ctx)
	st := Status{Up: up, CheckedAt: time.Now()}

	p.mu.Lock()
	changed := p.status.Up != up || p.status.CheckedAt.IsZero()
	p.status = st
	p.mu.Unlock()

	serving := healthpb.HealthCheckResponse_NOT_SERVING
	gauge := 0.0
	if up {
		serving = healthpb.HealthCheckResponse_SERVING
		gauge = 1
	}
	p.server.SetServingStatus(AssistantService, serving)
	metrics.AssistantUp.Set(gauge)

	if changed {
		p.logger.Info("Assistant availability changed", "up", up)
	}
	return st
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			p.Probe(ctx)
		case <-ctx.Done():
			p.logger.Info("Health prober shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before exit.
func (p *Prober) Shutdown() {
	p.server.Shutdown()
}
