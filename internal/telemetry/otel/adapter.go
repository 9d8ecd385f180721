package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"nexus-auth/backend/internal/audit"
)

// RecordEmitter is the part of otellog.Logger the emitter uses.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// LoginEmitter publishes successful logins as OTel log records.
type LoginEmitter struct {
	logger RecordEmitter
	nowF   func() time.Time
}

// NewLoginEmitter returns an emitter on provider. A nil provider yields a nil
// emitter whose Record does nothing.
func NewLoginEmitter(provider *sdklog.LoggerProvider) *LoginEmitter {
	if provider == nil {
		return nil
	}
	return NewLoginEmitterWithLogger(provider.Logger("nexus-auth.login"))
}

// NewLoginEmitterWithLogger returns an emitter writing to logger.
func NewLoginEmitterWithLogger(logger RecordEmitter) *LoginEmitter {
	return &LoginEmitter{logger: logger, nowF: time.Now}
}

// Record emits e. The raw user-agent is reduced to browser and OS.
func (e *LoginEmitter) Record(ctx context.Context, entry audit.Entry) {
	if e == nil {
		return
	}
	agent := audit.ParseUserAgent(entry.UserAgent)
	rec := otellog.Record{}
	rec.SetTimestamp(e.nowF())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName("auth.login")
	rec.SetBody(otellog.StringValue("login succeeded"))
	rec.AddAttributes(
		otellog.Int64("user_id", entry.UserID),
		otellog.Int("login_type", entry.LoginType),
		otellog.Int("login_platform", entry.LoginPlatform),
		otellog.String("client_ip", entry.IP),
		otellog.String("browser", agent.Browser),
		otellog.String("os", agent.OS),
	)
	e.logger.Emit(ctx, rec)
}
