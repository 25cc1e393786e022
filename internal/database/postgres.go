package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"clothingrental/internal/config"
	"clothingrental/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresKV is the shared-server variant of SQLiteKV.
type PostgresKV struct {
	pool   *pgxpool.Pool
	table  string
	logger *zerolog.Logger
}

func NewPostgresKV(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*PostgresKV, error) {
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid postgres table name %q", cfg.Table)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	kv := &PostgresKV{pool: pool, table: cfg.Table, logger: logger}
	if err := kv.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info().Str("host", cfg.Host).Str("table", cfg.Table).Msg("Postgres storage initialized")
	}
	return kv, nil
}

func (p *PostgresKV) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        version BIGINT NOT NULL DEFAULT 1,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`, p.table)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresKV) Close() { p.pool.Close() }

func (p *PostgresKV) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PostgresKV) Get(ctx context.Context, key string) (string, int64, error) {
	var (
		value   string
		version int64
	)
	query := fmt.Sprintf(`SELECT value, version FROM %s WHERE key = $1`, p.table)
	err := p.pool.QueryRow(ctx, query, key).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, domain.ErrKeyNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, version, nil
}

func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (key, value, version, updated_at) VALUES ($1, $2, 1, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            version = %[1]s.version + 1,
            updated_at = now()`, p.table)
	if _, err := p.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error) {
	var query string
	args := []any{key, value}
	if version == 0 {
		query = fmt.Sprintf(`INSERT INTO %s (key, value, version, updated_at) VALUES ($1, $2, 1, now())
            ON CONFLICT (key) DO NOTHING`, p.table)
	} else {
		query = fmt.Sprintf(`UPDATE %s SET value = $2, version = version + 1, updated_at = now()
            WHERE key = $1 AND version = $3`, p.table)
		args = append(args, version)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres set %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrVersionConflict
	}
	return version + 1, nil
}

func (p *PostgresKV) Remove(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	if _, err := p.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("postgres remove %s: %w", key, err)
	}
	return nil
}
