package main

import (
	"context"
	"log"
	"os"

	"bikeshop-pos/internal/adapters/cli"
	"bikeshop-pos/internal/app"
	"bikeshop-pos/internal/config"
	"bikeshop-pos/internal/db"
	"bikeshop-pos/internal/events"
	"bikeshop-pos/internal/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Warn level keeps operational logs out of the command output.
	logger := logging.Must(logging.New("bikeshop-cli", cfg.Log.Env, "warn"))
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, "bikeshop-cli")
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	svc := app.NewAppService(app.NewServices(pool, nil, logger), app.Options{
		Publisher: publisher,
		Logger:    logger,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})

	env := cli.Env{Operator: cfg.CLI.Operator, In: os.Stdin, Out: os.Stdout}
	if err := cli.Run(ctx, svc, env, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
