// Package relational stores accounts and the case board on either Postgres (pgx)
// or SQLite. Queries are written with '?' placeholders and rebound per driver.
package relational

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx open: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ddl := postgresSchema
	if db.DriverName() == DriverSQLite {
		ddl = sqliteSchema
	}
	for i, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement %d: %w", i, err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email TEXT UNIQUE,
	phone TEXT UNIQUE,
	role TEXT NOT NULL DEFAULT 'user',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	last_login TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS cases (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	methods TEXT NOT NULL DEFAULT '',
	results TEXT NOT NULL DEFAULT '',
	conclusions TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS case_images (
	id BIGSERIAL PRIMARY KEY,
	case_id BIGINT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	image_path TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS case_comments (
	id BIGSERIAL PRIMARY KEY,
	case_id BIGINT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	user_id BIGINT,
	content TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_case_comments_case_id ON case_comments(case_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email TEXT UNIQUE,
	phone TEXT UNIQUE,
	role TEXT NOT NULL DEFAULT 'user',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL,
	last_login TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	methods TEXT NOT NULL DEFAULT '',
	results TEXT NOT NULL DEFAULT '',
	conclusions TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL,
	date TIMESTAMP NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS case_images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	image_path TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS case_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	user_id INTEGER,
	content TEXT NOT NULL,
	date TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_case_comments_case_id ON case_comments(case_id)`,
}
