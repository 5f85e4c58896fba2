/**
 * @description
 * This is the main entry point for the fund-service. It loads configuration,
 * selects the storage, cache and broker adapters that are configured, wires the
 * service container and starts the HTTP server, the NAV update consumer and the
 * wizard sweep scheduler.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver (optional; memory store otherwise).
 * - github.com/redis/go-redis/v9: Session mirror and submit rate limiting (optional).
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store, pkg/rabbitmq.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/fund-service/internal/api"
	"github.com/transfa/fund-service/internal/app"
	"github.com/transfa/fund-service/internal/config"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
	rmrabbit "github.com/transfa/fund-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. Ignored in production.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using process environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	log.Printf("level=info component=bootstrap msg=\"starting fund-service\" port=%s", cfg.ServerPort)

	deps := app.Deps{Logger: logger}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"database url missing; using in-memory store\" env=DATABASE_URL")
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}
		poolConfig.MaxConns = 20
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()

		repo := store.NewPostgresRepository(dbpool)
		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
		if err := repo.EnsureSchema(schemaCtx); err != nil {
			cancelSchema()
			log.Fatalf("level=fatal component=bootstrap msg=\"schema setup failed\" err=%v", err)
		}
		cancelSchema()
		deps.Repo = repo
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	}

	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; session mirror and rate limiting kept in memory\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory adapters\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory adapters\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				deps.Mirror = store.NewRedisSessionMirror(redisClient, cfg.RedisKeyPrefix, cfg.SessionMirrorTTL())
				deps.Limiter = app.NewRedisSubmitRateLimiter(redisClient, cfg.RedisKeyPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Events are best effort; the fallback producer drops them when the broker is unavailable.
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer rabbitProducer.Close()
		deps.Publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	container := app.NewContainer(cfg, deps)

	if cfg.SeedDemoData && strings.TrimSpace(cfg.DemoPassword) == "" {
		log.Println("level=warn component=bootstrap msg=\"demo seed skipped; password not configured\" env=DEMO_PASSWORD")
	} else if cfg.SeedDemoData {
		if _, err := app.SeedDemo(context.Background(), container, cfg.DemoPassword); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"demo seed skipped\" err=%v", err)
		}
	}

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; nav updates disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		bindings := map[string]rmrabbit.Handler{
			domain.RoutingKeyNAVUpdated: container.NAVConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(domain.EventsExchange, cfg.NAVUpdateQueue, bindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"nav consumer start failed\" err=%v", err)
		}
	}

	scheduler := app.NewScheduler(container.Jobs, logger.With("component", "scheduler"), app.SchedulerConfig{
		WizardSweepSchedule: cfg.WizardSweepSchedule,
	})
	if err := scheduler.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"scheduler start failed\" err=%v", err)
	}

	handlers := api.NewHandlers(container)
	router := api.Routes(handlers, container.Auth, cfg.AllowedOrigins())

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
