// Package main runs the storefront order-intake backend.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/mardaloop/bakery-backend/internal/app"
	"github.com/mardaloop/bakery-backend/internal/app/httpapi"
	"github.com/mardaloop/bakery-backend/internal/app/metrics"
	"github.com/mardaloop/bakery-backend/internal/app/storage/postgres"
	"github.com/mardaloop/bakery-backend/internal/auth/initdata"
	"github.com/mardaloop/bakery-backend/internal/config"
	"github.com/mardaloop/bakery-backend/internal/middleware"
	"github.com/mardaloop/bakery-backend/internal/ratelimit"
	"github.com/mardaloop/bakery-backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to optional YAML config file")
	flag.Parse()

	// Missing .env is fine; production injects real environment variables.
	_ = godotenv.Load()

	log := logger.NewDefault("server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer db.Close()

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pg := postgres.New(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.WithError(err).Fatal("initialise database schema")
		}
		cancel()
		stores.Orders = pg
		log.Info("database initialised")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory order store")
	}

	var counters ratelimit.CounterStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("parse REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		counters = ratelimit.NewRedisStore(client, cfg.RateWindow())
		log.Info("using redis rate limit counters")
	} else {
		counters = ratelimit.NewMemoryStore(cfg.RateWindow(), nil)
	}
	gate := ratelimit.NewGate(counters, cfg.RateLimit, log)

	verifier := initdata.New(cfg.TelegramToken)
	application := app.New(stores, gate, verifier, log)

	api := httpapi.NewHandler(httpapi.Config{
		Orders:     application.Orders,
		MenuPath:   cfg.MenuPath,
		StaticDir:  cfg.StaticDir,
		TrustProxy: cfg.TrustedProxy,
		Logger:     log,
	})

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", api)

	// The order endpoint is excluded from the middleware gate: the admission
	// pipeline counts it as its first stage.
	limiter := middleware.NewRateLimiter(gate, log, []string{"/api/order"}, cfg.TrustedProxy)
	cors := middleware.NewCORSMiddleware(cfg.AllowedOrigins)

	var handler http.Handler = root
	handler = limiter.Handler(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = cors.Handler(handler)
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = middleware.GlobalLimiter(cfg.GlobalRPS, cfg.GlobalBurst)(handler)
	handler = metrics.InstrumentHandler(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}
