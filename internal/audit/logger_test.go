package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexus-auth/backend/internal/audit/domain"
	auditrepo "nexus-auth/backend/internal/audit/repository"
)

type failingRepo struct{}

func (failingRepo) Create(ctx context.Context, l *domain.LoginLog) error {
	return errors.New("database error")
}

func (failingRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LoginLog, error) {
	return nil, nil
}

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func TestLogger_Record_Success(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	logger := NewLogger(repo)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	logger.nowF = func() time.Time { return at }
	ctx := context.Background()

	logger.Record(ctx, Entry{UserID: 7, LoginType: 1, LoginPlatform: 2, IP: "192.168.1.1", UserAgent: chromeOnWindows})

	logs, err := repo.ListByUser(ctx, 7, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.LoginIP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.LoginIP, "192.168.1.1")
	}
	if entry.LoginType != 1 || entry.LoginPlatform != 2 {
		t.Errorf("type/platform = %d/%d, want 1/2", entry.LoginType, entry.LoginPlatform)
	}
	if entry.Browser != "Chrome" {
		t.Errorf("browser = %q, want Chrome", entry.Browser)
	}
	if entry.OS != "Windows 10 or Windows Server 2016" {
		t.Errorf("os = %q", entry.OS)
	}
	if !entry.LoginTime.Equal(at) {
		t.Errorf("login time = %v, want %v", entry.LoginTime, at)
	}
}

func TestLogger_Record_UnknownIP(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	NewLogger(repo).Record(context.Background(), Entry{UserID: 1})

	logs, _ := repo.ListByUser(context.Background(), 1, 0, 0)
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(logs))
	}
	if logs[0].LoginIP != "unknown" {
		t.Errorf("ip = %q, want unknown", logs[0].LoginIP)
	}
}

func TestLogger_Record_RepositoryError(t *testing.T) {
	// Should not panic - best-effort logging
	NewLogger(failingRepo{}).Record(context.Background(), Entry{UserID: 1})
}

func TestLogger_Record_NilRepo(t *testing.T) {
	NewLogger(nil).Record(context.Background(), Entry{UserID: 1})
}

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		ua          string
		wantBrowser string
		wantOS      string
	}{
		{chromeOnWindows, "Chrome", "Windows 10 or Windows Server 2016"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15", "Safari", "OSX"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox", "Linux"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "MSEdge", "Windows 10 or Windows Server 2016"},
		{"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", "Chrome", "Android"},
		{"curl/8.4.0", "curl", "Unknown"},
		{"", "Unknown", "Unknown"},
	}
	for _, tc := range testCases {
		got := ParseUserAgent(tc.ua)
		if got.Browser != tc.wantBrowser || got.OS != tc.wantOS {
			t.Errorf("ParseUserAgent(%q) = %+v, want {%s %s}", tc.ua, got, tc.wantBrowser, tc.wantOS)
		}
	}
}

type countingRecorder struct {
	entries []Entry
}

func (c *countingRecorder) Record(ctx context.Context, e Entry) {
	c.entries = append(c.entries, e)
}

func TestTee(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rec := Tee(a, nil, b)
	rec.Record(context.Background(), Entry{UserID: 5})
	rec.Record(context.Background(), Entry{UserID: 6})
	if len(a.entries) != 2 || len(b.entries) != 2 {
		t.Fatalf("entries = %d, %d; want 2, 2", len(a.entries), len(b.entries))
	}
	if b.entries[1].UserID != 6 {
		t.Errorf("second entry user = %d, want 6", b.entries[1].UserID)
	}
}
