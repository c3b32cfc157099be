// Package health exposes liveness and readiness over HTTP and gRPC.
package health

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the overall "" status.
const ServiceName = "deskbot"

// Probe returns nil when the dependency is ready.
type Probe func(ctx context.Context) error

// Checker runs named readiness probes.
type Checker struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe)}
}

// Add registers a probe. A nil probe is ignored.
func (c *Checker) Add(name string, p Probe) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check runs every probe with timeout and returns the first failure in name order.
func (c *Checker) Check(ctx context.Context, timeout time.Duration) error {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		c.mu.RLock()
		p := c.probes[name]
		c.mu.RUnlock()

		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}
	return nil
}

// GRPCServer serves grpc.health.v1 with the status kept in sync with the checker.
type GRPCServer struct {
	checker *Checker
	srv     *grpc.Server
	health  *health.Server
	logger  zerolog.Logger
}

func NewGRPCServer(checker *Checker, logger zerolog.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPCServer{
		checker: checker,
		srv:     srv,
		health:  hs,
		logger:  logger.With().Str("component", "grpc_health").Logger(),
	}
}

// Refresh runs the checker once and publishes the result.
func (s *GRPCServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Check(ctx, time.Second); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis and refreshes status every interval until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.srv.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
