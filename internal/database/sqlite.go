package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clothingrental/internal/domain"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_store (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

type kvRow struct {
	Value   string `db:"value"`
	Version int64  `db:"version"`
}

// SQLiteKV хранит коллекции приложения в одной таблице kv_store.
type SQLiteKV struct {
	db     *sqlx.DB
	path   string
	logger *zerolog.Logger
}

func NewSQLiteKV(path string, logger *zerolog.Logger) (*SQLiteKV, error) {
	// Создаем директорию для БД, если её нет
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite допускает одного писателя
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("SQLite storage initialized")
	}
	return &SQLiteKV{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteKV) Path() string { return s.path }

func (s *SQLiteKV) Close() error { return s.db.Close() }

func (s *SQLiteKV) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, int64, error) {
	var row kvRow
	err := s.db.GetContext(ctx, &row, `SELECT value, version FROM kv_store WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, domain.ErrKeyNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return row.Value, row.Version, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv_store (key, value, version, updated_at) VALUES (?, ?, 1, ?)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            version = kv_store.version + 1,
            updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if version == 0 {
		res, err = s.db.ExecContext(ctx, `
            INSERT INTO kv_store (key, value, version, updated_at) VALUES (?, ?, 1, ?)
            ON CONFLICT(key) DO NOTHING`,
			key, value, time.Now().UTC())
	} else {
		res, err = s.db.ExecContext(ctx, `
            UPDATE kv_store SET value = ?, version = version + 1, updated_at = ?
            WHERE key = ? AND version = ?`,
			value, time.Now().UTC(), key, version)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite set %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite set %s: %w", key, err)
	}
	if affected == 0 {
		return 0, domain.ErrVersionConflict
	}
	return version + 1, nil
}

func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite remove %s: %w", key, err)
	}
	return nil
}
