// Package postgres owns the single process-wide connection pool (spec §9:
// "the only process-wide state is the database connection pool..."),
// embedding the schema migrations so a fresh environment self-bootstraps.
package postgres

import (
	"context"
	"embed"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open establishes the pool and applies any pending migrations. Short
// transactions only; spec §5 forbids holding a DB transaction across an
// OCR or destination call, so callers must keep each unit of work small.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies every embedded migration in lexical order inside its own
// transaction. Idempotent: every statement in 0001_init.sql uses
// IF NOT EXISTS, so re-running is a no-op.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		nlog.Infof("applying migration %s", name)
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return err
		}
	}
	return nil
}
