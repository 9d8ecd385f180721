package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"nexus-auth/backend/internal/audit"
	auditrepo "nexus-auth/backend/internal/audit/repository"
	"nexus-auth/backend/internal/authz"
	authzrepo "nexus-auth/backend/internal/authz/repository"
	"nexus-auth/backend/internal/config"
	"nexus-auth/backend/internal/db"
	"nexus-auth/backend/internal/gate"
	"nexus-auth/backend/internal/health"
	"nexus-auth/backend/internal/identity/provider"
	identityservice "nexus-auth/backend/internal/identity/service"
	"nexus-auth/backend/internal/kvstore"
	"nexus-auth/backend/internal/policy/engine"
	"nexus-auth/backend/internal/ratelimit"
	"nexus-auth/backend/internal/security"
	"nexus-auth/backend/internal/server"
	"nexus-auth/backend/internal/server/httpapi"
	sessioncache "nexus-auth/backend/internal/session/cache"
	sessionrepo "nexus-auth/backend/internal/session/repository"
	sessionservice "nexus-auth/backend/internal/session/service"
	"nexus-auth/backend/internal/telemetry/otel"
	userrepo "nexus-auth/backend/internal/user/repository"
	"nexus-auth/backend/internal/verifycode"
)

const storeOpTimeout = 2 * time.Second

type app struct {
	db       *sql.DB
	store    kvstore.Store
	closers  []func() error
	sessions *sessioncache.Cache
	online   *sessionservice.OnlineService
	auth     *identityservice.AuthService
	codes    *verifycode.Service
	resolver *authz.Resolver
	logins   *auditrepo.PostgresRepository
	qq       *provider.QQ
	gate     *gate.Gate
	proxies  *gate.TrustedProxies
	health   *health.Checker
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func() error, error) {
	if cfg.RedisURL == "" {
		log.Println("REDIS_URL not set; session and rate-limit state is kept in process")
		return kvstore.NewMemoryStore(), nil, nil
	}
	rs, err := kvstore.OpenRedis(ctx, cfg.RedisURL, storeOpTimeout)
	if err != nil {
		return nil, nil, err
	}
	return rs, rs.Close, nil
}

func capabilityChecker(ctx context.Context, cfg *config.Config) (authz.CapabilityChecker, health.Probe, error) {
	if cfg.AuthzEngine != config.AuthzEngineOPA {
		return authz.SetChecker{}, nil, nil
	}
	var policy string
	if cfg.AuthzPolicyFile != "" {
		raw, err := os.ReadFile(cfg.AuthzPolicyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read policy: %w", err)
		}
		policy = string(raw)
	}
	c, err := engine.NewOPAChecker(ctx, policy)
	if err != nil {
		return nil, nil, err
	}
	return c, c.HealthCheck, nil
}

func build(ctx context.Context, cfg *config.Config, providers *otel.Providers) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.db = conn
	a.closers = append(a.closers, conn.Close)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("kv store: %w", err)
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	tokens, err := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	a.sessions = sessioncache.New(store, tokens)
	a.online = sessionservice.NewOnlineService(sessionrepo.NewPostgresRepository(conn), a.sessions)
	a.resolver = authz.NewResolver(authzrepo.NewPostgresRepository(conn))
	a.logins = auditrepo.NewPostgresRepository(conn)

	var sender verifycode.Sender = verifycode.LogSender{}
	if cfg.MailRelayURL != "" {
		sender = verifycode.NewWebhookSender(cfg.MailRelayURL, cfg.MailRelayKey)
	} else if cfg.IsProduction() {
		return nil, fmt.Errorf("MAIL_RELAY_URL must be set in production")
	}
	a.codes = verifycode.NewService(store, sender, cfg.VerifyCodeTTL())

	users := userrepo.NewPostgresRepository(conn)
	strategies := []identityservice.Strategy{
		identityservice.NewEmailStrategy(users, a.codes, security.NewHasher(cfg.BcryptCost)),
	}
	if cfg.QQEnabled() {
		a.qq = provider.NewQQ(cfg.QQClientID, cfg.QQClientSecret, cfg.QQRedirectURI, cfg.QQBaseURL)
		strategies = append(strategies, identityservice.NewQQStrategy(a.qq, users))
	}
	registry, err := identityservice.NewRegistry(strategies...)
	if err != nil {
		return nil, fmt.Errorf("login strategies: %w", err)
	}
	recorder := audit.Tee(audit.NewLogger(a.logins), otel.NewLoginEmitter(providers.LoggerProvider))
	a.auth = identityservice.NewAuthService(registry, users, tokens, a.sessions, a.online, recorder).
		WithTransactor(db.NewTransactor(a.db))

	checker, policyProbe, err := capabilityChecker(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("authz engine: %w", err)
	}
	allow, err := gate.NewAllowList(cfg.AllowListPatterns())
	if err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}
	a.proxies, err = gate.NewTrustedProxies(cfg.TrustedProxyList())
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	loginLimit := ratelimit.Policy{Type: ratelimit.LimitIP, Period: cfg.RateLimitPeriod(), Count: cfg.RateLimitCount}
	codeLimit := ratelimit.Policy{Type: ratelimit.LimitIP, Period: cfg.VerifyCodeTTL(), Count: 1}
	policies := gate.NewPolicies()
	server.RegisterPolicies(policies, loginLimit, codeLimit)
	httpapi.RegisterPolicies(policies, loginLimit, codeLimit)
	a.gate = gate.New(gate.Config{
		Policies:  policies,
		AllowList: allow,
		Sessions:  a.sessions,
		Online:    a.online,
		Resolver:  a.resolver,
		Checker:   checker,
		Limiter:   ratelimit.NewLimiter(store),
	})

	a.health = health.NewChecker(0).
		Add("database", conn.PingContext).
		Add("kvstore", store.Ping).
		Add("policy", policyProbe)

	ok = true
	return a, nil
}
