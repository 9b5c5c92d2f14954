package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Farhaan-Ali/trade-stream/internal/config"
	"github.com/Farhaan-Ali/trade-stream/internal/httpapi"
	"github.com/Farhaan-Ali/trade-stream/internal/notify"
	"github.com/Farhaan-Ali/trade-stream/internal/store/postgres"
	"github.com/Farhaan-Ali/trade-stream/internal/telemetry"
	"github.com/Farhaan-Ali/trade-stream/internal/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("platform-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	if err := postgres.Migrate(context.Background(), cfg.DatabaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var notifier notify.Publisher = notify.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("amqp connect: %v", err)
		}
		defer amqpPublisher.Close()
		notifier = amqpPublisher
	}

	st := postgres.NewStore(pool)
	tokens := token.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)
	handler := httpapi.NewHandler(st, tokens, notifier, httpapi.Options{
		BootstrapAdminEmail: cfg.BootstrapAdminEmail,
		AccessTokenTTL:      cfg.AccessTokenTTL,
		RefreshTokenTTL:     cfg.RefreshTokenTTL,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		AccountPerMinute: cfg.AccountRateLimitPerMinute,
		AccountBurst:     cfg.AccountRateLimitBurst,
	})

	routes := httpapi.AuthMiddleware(tokens, st, handler.Routes())
	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(routes)), "platform-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("platform-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
