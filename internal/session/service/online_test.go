package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"nexus-auth/backend/internal/session/repository"
)

type recordingInvalidator struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}

func TestOnlineService_SaveKeepsOnePerPlatform(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	inv := &recordingInvalidator{}
	svc := NewOnlineService(repo, inv)

	if _, err := svc.Save(ctx, 1, 1, "first"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, 1, 1, "second"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, 1, 2, "front"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	all, err := svc.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("entries = %d, want 2", len(all))
	}
	back, _ := repo.GetByUserPlatform(ctx, 1, 1)
	if back == nil || back.LoginToken != "second" {
		t.Errorf("back-desk entry = %+v, want token second", back)
	}
	if len(inv.tokens) != 1 || inv.tokens[0] != "first" {
		t.Errorf("invalidated = %v, want [first]", inv.tokens)
	}
}

func TestOnlineService_Offline(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	inv := &recordingInvalidator{}
	svc := NewOnlineService(repo, inv)
	_, _ = svc.Save(ctx, 7, 2, "tok")

	if err := svc.Offline(ctx, 7, 2); err != nil {
		t.Fatalf("Offline: %v", err)
	}
	if len(inv.tokens) != 1 || inv.tokens[0] != "tok" {
		t.Errorf("invalidated = %v, want [tok]", inv.tokens)
	}
	if e, _ := repo.GetByUserPlatform(ctx, 7, 2); e != nil {
		t.Errorf("entry still present: %+v", e)
	}
	if err := svc.Offline(ctx, 7, 2); !errors.Is(err, ErrNotOnline) {
		t.Errorf("second Offline: want ErrNotOnline, got %v", err)
	}
}

func TestOnlineService_RemoveByToken(t *testing.T) {
	ctx := context.Background()
	svc := NewOnlineService(repository.NewMemoryRepository(), &recordingInvalidator{})
	_, _ = svc.Save(ctx, 1, 1, "tok")
	ok, err := svc.RemoveByToken(ctx, "tok")
	if err != nil || !ok {
		t.Fatalf("RemoveByToken = %v, %v", ok, err)
	}
	ok, _ = svc.RemoveByToken(ctx, "tok")
	if ok {
		t.Error("RemoveByToken twice should report false")
	}
}

type liveSet map[string]bool

func (l liveSet) IsActive(ctx context.Context, token string) (bool, error) {
	return l[token], nil
}

type brokenLiveness struct{}

func (brokenLiveness) IsActive(ctx context.Context, token string) (bool, error) {
	return false, errors.New("store down")
}

func TestOnlineService_Reconcile(t *testing.T) {
	tests := []struct {
		name  string
		batch int
	}{
		{"single page", 100},
		{"paged", 2},
		{"default batch", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := repository.NewMemoryRepository()
			svc := NewOnlineService(repo, &recordingInvalidator{})
			live := liveSet{}
			for i := int64(1); i <= 5; i++ {
				for _, platform := range []int{1, 2} {
					tok := string(rune('a'+i)) + string(rune('0'+platform))
					if _, err := svc.Save(ctx, i, platform, tok); err != nil {
						t.Fatalf("Save: %v", err)
					}
					live[tok] = platform == 1
				}
			}

			removed, err := svc.Reconcile(ctx, live, tt.batch)
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if removed != 5 {
				t.Errorf("removed = %d, want 5", removed)
			}
			left, _ := svc.List(ctx, 0, 0)
			if len(left) != 5 {
				t.Fatalf("entries left = %d, want 5", len(left))
			}
			for _, e := range left {
				if e.LoginPlatform != 1 {
					t.Errorf("dead entry survived: %+v", e)
				}
			}
		})
	}
}

func TestOnlineService_ReconcileStoreError(t *testing.T) {
	ctx := context.Background()
	svc := NewOnlineService(repository.NewMemoryRepository(), &recordingInvalidator{})
	_, _ = svc.Save(ctx, 1, 1, "tok")
	if _, err := svc.Reconcile(ctx, brokenLiveness{}, 10); err == nil {
		t.Fatal("Reconcile should surface the liveness error")
	}
}

func TestOnlineService_ConcurrentSavesLeaveOneLiveToken(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	inv := &recordingInvalidator{}
	svc := NewOnlineService(repo, inv)
	if _, err := svc.Save(ctx, 3, 1, "seed"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if _, err := svc.Save(ctx, 3, 1, fmt.Sprintf("tok-%d", i)); err != nil {
				t.Errorf("Save: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	winner, err := repo.GetByUserPlatform(ctx, 3, 1)
	if err != nil || winner == nil {
		t.Fatalf("GetByUserPlatform = %v, %v", winner, err)
	}
	invalidated := map[string]int{}
	for _, tok := range inv.tokens {
		invalidated[tok]++
	}
	if len(inv.tokens) != n {
		t.Errorf("invalidations = %d, want %d", len(inv.tokens), n)
	}
	if invalidated[winner.LoginToken] != 0 {
		t.Errorf("stored token %s was invalidated", winner.LoginToken)
	}
	if invalidated["seed"] != 1 {
		t.Errorf("seed invalidated %d times, want 1", invalidated["seed"])
	}
	for i := 0; i < n; i++ {
		tok := fmt.Sprintf("tok-%d", i)
		if tok == winner.LoginToken {
			continue
		}
		if invalidated[tok] != 1 {
			t.Errorf("%s invalidated %d times, want 1", tok, invalidated[tok])
		}
	}
}
