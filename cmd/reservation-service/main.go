package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mvannier/tablebook/internal/booking"
	"github.com/mvannier/tablebook/internal/handlers"
	"github.com/mvannier/tablebook/internal/outbox"
	"github.com/mvannier/tablebook/internal/payments"
	"github.com/mvannier/tablebook/internal/storage"
	"github.com/mvannier/tablebook/libs/config"
	"github.com/mvannier/tablebook/libs/db"
	"github.com/mvannier/tablebook/libs/httpx"
	"github.com/mvannier/tablebook/libs/kafkax"
	otelx "github.com/mvannier/tablebook/libs/otel"
	"github.com/mvannier/tablebook/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "reservation-service")
	port, err := config.Port("PORT", "8084")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("VENUE_TIMEZONE", "America/New_York"))
	if err != nil {
		logger.Error("invalid venue timezone", "err", err)
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	venueRepo := storage.NewVenueRepository(pool)
	reservationRepo := storage.NewReservationRepository(pool, outboxRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	holds := payments.New(logger, payments.Config{
		StripeSecretKey: config.String("STRIPE_SECRET_KEY", ""),
		HoldAmountCents: int64(config.Int("HOLD_AMOUNT_CENTS", 0)),
		Currency:        config.String("HOLD_CURRENCY", "usd"),
	})

	svc := booking.NewService(venueRepo, reservationRepo, loc, holds, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handlers.NewReservationHandler(svc, logger).Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}))
	}
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			service,
		)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "reservation")
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
