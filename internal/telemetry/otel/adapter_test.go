package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"nexus-auth/backend/internal/audit"
)

type recordCapture struct {
	recs []otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.recs = append(r.recs, rec)
}

func TestLoginEmitter_NilProvider(t *testing.T) {
	em := NewLoginEmitter(nil)
	if em != nil {
		t.Fatal("NewLoginEmitter(nil) should be nil")
	}
	em.Record(context.Background(), audit.Entry{UserID: 1})
}

func TestLoginEmitter_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	NewLoginEmitter(provider).Record(context.Background(), audit.Entry{UserID: 1})
}

func TestLoginEmitter_Attributes(t *testing.T) {
	capture := &recordCapture{}
	em := NewLoginEmitterWithLogger(capture)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	em.nowF = func() time.Time { return at }

	em.Record(context.Background(), audit.Entry{
		UserID:        42,
		LoginType:     2,
		LoginPlatform: 1,
		IP:            "10.0.0.9",
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	})
	if len(capture.recs) != 1 {
		t.Fatalf("records = %d, want 1", len(capture.recs))
	}
	rec := capture.recs[0]
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.EventName() != "auth.login" {
		t.Errorf("event name = %q, want auth.login", rec.EventName())
	}
	got := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		got[kv.Key] = kv.Value.String()
		return true
	})
	want := map[string]string{
		"user_id":        "42",
		"login_type":     "2",
		"login_platform": "1",
		"client_ip":      "10.0.0.9",
		"browser":        "Firefox",
		"os":             "Linux",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, got[k], v)
		}
	}
}
