package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(0).
		Add("db", func(context.Context) error { return nil }).
		Add("kv", func(context.Context) error { return nil }).
		Add("skipped", nil)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestChecker_ReportsFailures(t *testing.T) {
	c := NewChecker(time.Second).
		Add("db", func(context.Context) error { return errors.New("connection refused") }).
		Add("kv", func(context.Context) error { return nil })
	err := c.Check(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "db: connection refused") {
		t.Errorf("error = %q, want db failure", err)
	}
}

func TestChecker_ProbeTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond).
		Add("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	if err := c.Check(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want deadline exceeded, got %v", err)
	}
}

func TestChecker_UpdateSetsServingStatus(t *testing.T) {
	hs := health.NewServer()
	healthy := true
	c := NewChecker(0).Add("db", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})
	ctx := context.Background()

	c.update(ctx, hs)
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	healthy = false
	c.update(ctx, hs)
	resp, _ = hs.Check(ctx, &healthpb.HealthCheckRequest{})
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}
}
