// Worker keeps the online-user table consistent with the session store: it
// evicts expired cached sessions and deletes online entries whose token has
// lost its revocation marker. Requires DATABASE_URL and REDIS_URL so it sees
// the same state as the servers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus-auth/backend/internal/config"
	"nexus-auth/backend/internal/db"
	"nexus-auth/backend/internal/kvstore"
	"nexus-auth/backend/internal/security"
	sessioncache "nexus-auth/backend/internal/session/cache"
	sessionrepo "nexus-auth/backend/internal/session/repository"
	sessionservice "nexus-auth/backend/internal/session/service"
)

const reconcileBatch = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	if cfg.RedisURL == "" {
		log.Fatal("worker: REDIS_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 4})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	store, err := kvstore.OpenRedis(ctx, cfg.RedisURL, 2*time.Second)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer store.Close()

	tokens, err := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	cache := sessioncache.New(store, tokens)
	online := sessionservice.NewOnlineService(sessionrepo.NewPostgresRepository(conn), cache)

	interval := cfg.SweepInterval()
	log.Printf("worker: reconciling every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pass(ctx, cache, online)
		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return
		case <-ticker.C:
		}
	}
}

func pass(ctx context.Context, cache *sessioncache.Cache, online *sessionservice.OnlineService) {
	evicted, err := cache.RemoveExpired(ctx)
	if err != nil {
		log.Printf("worker: sweep: %v", err)
	}
	removed, err := online.Reconcile(ctx, cache, reconcileBatch)
	if err != nil {
		log.Printf("worker: reconcile: %v", err)
	}
	if evicted > 0 || removed > 0 {
		log.Printf("worker: evicted %d sessions, removed %d online entries", evicted, removed)
	}
}
