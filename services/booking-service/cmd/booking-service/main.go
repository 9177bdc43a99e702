package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/petcare-labs/clinibook/libs/config"
	"github.com/petcare-labs/clinibook/libs/db"
	"github.com/petcare-labs/clinibook/libs/httpx"
	"github.com/petcare-labs/clinibook/libs/kafkax"
	otelx "github.com/petcare-labs/clinibook/libs/otel"
	"github.com/petcare-labs/clinibook/libs/runtime"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/handlers"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/notify"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/outbox"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/reminder"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	bookingRepo := storage.NewBookingRepository(pool)
	directoryRepo := storage.NewDirectoryRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	notifier := notify.NewOutboxNotifier(pool, outboxRepo)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	svc := booking.NewService(bookingRepo, directoryRepo, notifier, logger)

	reminderWorker := reminder.NewWorker(bookingRepo, notifier, logger, reminder.Config{
		Interval: time.Duration(config.Int("REMINDER_SCAN_MINUTES", 60)) * time.Minute,
		Location: config.String("CLINIC_ADDRESS", ""),
	})
	go reminderWorker.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var rateLimit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, service)
		rateLimit = limiter.Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			if rdb == nil {
				return errors.New("redis not configured")
			}
			return rdb.Ping(ctx).Err()
		}})
	} else {
		rateLimit = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware()
	}

	apiMux := http.NewServeMux()
	handlers.NewBookingHandler(svc, logger).Routes(apiMux)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/v1/", handlers.RequireAuth(jwtSecret)(apiMux))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			MaxAge:         time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
