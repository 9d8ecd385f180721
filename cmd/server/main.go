package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"nexus-auth/backend/internal/config"
	"nexus-auth/backend/internal/server"
	"nexus-auth/backend/internal/server/httpapi"
	"nexus-auth/backend/internal/telemetry/otel"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTELServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	app, err := build(ctx, cfg, providers)
	if err != nil {
		log.Fatalf("wire: %v", err)
	}
	defer app.close()

	hs := health.NewServer()
	go app.health.Watch(ctx, hs, 0)
	go app.sessions.RunSweeper(ctx, cfg.SweepInterval())

	grpcSrv := server.NewGRPCServer(app.gate, app.proxies)
	server.RegisterServices(grpcSrv, server.Deps{
		Auth:     app.auth,
		Codes:    app.codes,
		Resolver: app.resolver,
		Health:   hs,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("serve grpc: %v", err)
		}
	}()

	opts := httpapi.RouterOptions{
		Gate:     app.gate,
		Auth:     app.auth,
		Codes:    app.codes,
		Online:   app.online,
		Resolver: app.resolver,
		Logins:   app.logins,
		Health:   app.health.Check,
		Proxies:  app.proxies,
	}
	if app.qq != nil {
		opts.QQ = app.qq
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hs.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("servers stopped")
}
