package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"bikeshop-pos/internal/config"
	"bikeshop-pos/internal/db"
	"bikeshop-pos/internal/logging"
)

func main() {
	dir := flag.String("dir", "migrations", "directory containing *.sql migrations")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New("bikeshop-migrate", cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, "bikeshop-migrate")
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	applied, err := db.ApplyMigrations(ctx, pool, *dir, logger)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(applied) == 0 {
		fmt.Println("Schema is up to date.")
		return
	}
	for _, name := range applied {
		fmt.Printf("Applied %s\n", name)
	}
}
