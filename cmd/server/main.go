package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	webAdapter "bikeshop-pos/internal/adapters/web"
	"bikeshop-pos/internal/app"
	"bikeshop-pos/internal/cache"
	"bikeshop-pos/internal/config"
	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/db"
	"bikeshop-pos/internal/events"
	"bikeshop-pos/internal/logging"
	"bikeshop-pos/internal/metrics"
	"bikeshop-pos/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New("bikeshop-server", cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, "bikeshop-server")
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var productCache core.ProductCache
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			productCache = cache.NewProductCache(client, cfg.Redis.TTL, logging.Named(logger, "cache"), m)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logging.Named(logger, "events"))
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	svcs := app.NewServices(pool, productCache, logger)
	svc := app.NewAppService(svcs, app.Options{
		Publisher: publisher,
		Metrics:   m,
		Logger:    logging.Named(logger, "app"),
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})

	sched := scheduler.NewScheduler(cfg.Scheduler.LowStockCron, svcs.Inventory, publisher, m, logging.Named(logger, "scheduler"))
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	defer sched.Stop()

	handler := webAdapter.NewHandler(svc, webAdapter.Config{
		AllowedOrigins: cfg.Server.Origins(),
		JWTSecret:      cfg.Auth.JWTSecret,
		Logger:         logging.Named(logger, "http"),
		Metrics:        m,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
