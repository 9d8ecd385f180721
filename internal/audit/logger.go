package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nexus-auth/backend/internal/audit/domain"
	auditrepo "nexus-auth/backend/internal/audit/repository"
)

// Entry describes a successful login to be recorded.
type Entry struct {
	UserID        int64
	LoginType     int
	LoginPlatform int
	IP            string
	UserAgent     string
}

// LoginRecorder writes login logs. Record is best-effort: failures are logged
// and do not affect the caller.
type LoginRecorder interface {
	Record(ctx context.Context, e Entry)
}

// Logger implements LoginRecorder using the login log repository.
type Logger struct {
	repo auditrepo.Repository
	nowF func() time.Time
}

// NewLogger returns a Logger that persists to repo. repo may be nil; then Record is a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, nowF: time.Now}
}

// Record writes one login log entry.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l.repo == nil {
		return
	}
	ip := e.IP
	if ip == "" {
		ip = "unknown"
	}
	agent := ParseUserAgent(e.UserAgent)
	entry := &domain.LoginLog{
		ID:            uuid.New().String(),
		UserID:        e.UserID,
		LoginType:     e.LoginType,
		LoginPlatform: e.LoginPlatform,
		LoginIP:       ip,
		Browser:       agent.Browser,
		OS:            agent.OS,
		UserAgent:     e.UserAgent,
		LoginTime:     l.nowF().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		slog.Warn("login log write failed", "user_id", e.UserID, "err", err)
	}
}

type tee []LoginRecorder

func (t tee) Record(ctx context.Context, e Entry) {
	for _, r := range t {
		r.Record(ctx, e)
	}
}

// Tee returns a recorder that passes every entry to each of recorders in order.
// Nil recorders are dropped.
func Tee(recorders ...LoginRecorder) LoginRecorder {
	var t tee
	for _, r := range recorders {
		if r != nil {
			t = append(t, r)
		}
	}
	return t
}
