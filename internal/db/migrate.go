package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PendingMigrations lists the *.sql files in dir, sorted by name, that are not in applied.
func PendingMigrations(dir string, applied map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir %s: %w", dir, err)
	}
	var pending []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		if !applied[e.Name()] {
			pending = append(pending, e.Name())
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// ApplyMigrations runs every pending migration in dir, each in its own transaction,
// and records it in schema_migrations. It returns the names applied.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan migration name: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}

	pending, err := PendingMigrations(dir, applied)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range pending {
		sqlFile, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return done, fmt.Errorf("failed to read %s: %w", name, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return done, fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.Exec(ctx, string(sqlFile)); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("migration %s failed: %w", name, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return done, fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return done, fmt.Errorf("failed to commit migration %s: %w", name, err)
		}

		logger.Info("migration applied", zap.String("name", name))
		done = append(done, name)
	}
	return done, nil
}
