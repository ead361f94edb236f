package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-ticketing/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/event-ticketing/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/event-ticketing/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing/internal/config"
	httphandler "github.com/robertarktes/event-ticketing/internal/http"
	"github.com/robertarktes/event-ticketing/internal/idempotency"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/robertarktes/event-ticketing/internal/outbox"
	"github.com/robertarktes/event-ticketing/internal/rateLimit"
	"github.com/robertarktes/event-ticketing/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireAPI(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	pubKey, err := cfg.PublicKey()
	if err != nil {
		log.Fatalf("failed to load JWT key: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "ticketing-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)
	if err := mongoadapter.EnsureIndexes(context.Background(), mongoDB); err != nil {
		log.Fatalf("failed to create mongo indexes: %v", err)
	}
	events := mongoadapter.NewEventRepository(mongoDB, logger)
	bookings := mongoadapter.NewBookingRepository(mongoDB, logger)

	opts := []reservation.Option{}
	checks := map[string]httphandler.Pinger{"mongo": events}

	if cfg.CRDBDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		crdbRepo := crdb.NewRepository(pool)
		if err := crdbRepo.Migrate(context.Background()); err != nil {
			log.Fatalf("failed to migrate crdb: %v", err)
		}
		opts = append(opts, reservation.WithNotifier(outbox.NewWriter(crdbRepo)))
		checks["crdb"] = crdbRepo
	} else {
		logger.Warn("CRDB_DSN not set, booking events and deferred seat releases are disabled")
	}

	engine := reservation.NewEngine(events, bookings, logger, opts...)

	var (
		cache httphandler.EventCache
		rl    httphandler.Limiter
		idemp httphandler.IdempotencyStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		redisCache := redisadapter.NewCache(redisClient, cfg.EventCacheTTL)
		cache = redisCache
		rl = rateLimit.NewRateLimiter(redisClient)
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
		checks["redis"] = redisCache
	} else {
		logger.Warn("REDIS_ADDR not set, event cache, rate limiting and idempotency keys are disabled")
	}

	handlers := httphandler.NewHandlers(engine, events, bookings, cache, logger)
	for name, p := range checks {
		handlers.AddReadinessCheck(name, p)
	}

	limits := httphandler.RateLimits{PerUser: cfg.RateLimitUser, PerIP: cfg.RateLimitIP, Period: time.Minute}
	r := httphandler.SetupRouter(handlers, logger, pubKey, rl, limits, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening on ", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
