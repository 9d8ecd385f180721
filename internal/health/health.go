// Package health reports readiness of the backing services and drives the
// standard gRPC health service from it.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Checker runs named probes.
type Checker struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker returns a Checker. Each probe gets timeout; <= 0 means 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probes: make(map[string]Probe), timeout: timeout}
}

// Add registers probe under name. Nil probes are ignored.
func (c *Checker) Add(name string, probe Probe) *Checker {
	if probe != nil {
		c.probes[name] = probe
	}
	return c
}

// Check runs every probe and joins the failures.
func (c *Checker) Check(ctx context.Context) error {
	names := make([]string, 0, len(c.probes))
	for n := range c.probes {
		names = append(names, n)
	}
	sort.Strings(names)
	var errs []error
	for _, n := range names {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.probes[n](pctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// Watch updates hs with the overall serving status every interval until ctx is done.
func (c *Checker) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c.update(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.update(ctx, hs)
		}
	}
}

func (c *Checker) update(ctx context.Context, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		slog.Warn("health check failed", "err", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
}
