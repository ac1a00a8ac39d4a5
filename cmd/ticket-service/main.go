package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vms/ticket-service/internal/config"
	"vms/ticket-service/internal/httpapi"
	"vms/ticket-service/internal/store/postgres"
	"vms/ticket-service/internal/telemetry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.Setup("ticket-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:         cfg.DatabaseURL,
		MaxConns:    int32(cfg.PoolMaxConns),
		MinConns:    int32(cfg.PoolMinConns),
		MaxConnIdle: cfg.PoolMaxConnIdle,
	})
	if err != nil {
		log.Fatalf("database pool: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool, postgres.Options{
		AcquireTimeout: cfg.PoolAcquireTimeout,
	})

	handler := httpapi.NewHandler(st)
	limiter := httpapi.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	routes := httpapi.AuthMiddleware(st, handler.Routes())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(routes)), "ticket-service"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ticket-service listening on :%s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
