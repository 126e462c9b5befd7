// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres shares the cache between hosts through a PostgreSQL table.
type Postgres struct {
	pool   *pgxpool.Pool
	maxAge time.Duration
}

// OpenPostgres connects to url, applies pending schema migrations, and
// returns the cache.
func OpenPostgres(ctx context.Context, url string, maxAge time.Duration) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, maxAge: maxAge}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		record  []byte
		created time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT record, created_at FROM citecheck_lookups WHERE key = $1`, key,
	).Scan(&record, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	if expired(created, p.maxAge, time.Now()) {
		return Entry{}, false, nil
	}
	e, err := decode(record)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return e, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO citecheck_lookups (key, source, record, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			source = EXCLUDED.source,
			record = EXCLUDED.record,
			created_at = EXCLUDED.created_at
	`, key, string(e.Record.Provider()), data)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
