package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS places (
	id            TEXT PRIMARY KEY,
	name          TEXT,
	categories    JSONB NOT NULL DEFAULT '[]'::jsonb,
	district      TEXT,
	municipality  TEXT,
	micro_region  TEXT,
	street        TEXT,
	longitude     DOUBLE PRECISION,
	latitude      DOUBLE PRECISION,
	description   TEXT,
	accessibility TEXT,
	website       TEXT,
	source        TEXT,
	museum_type   TEXT,
	museum_focus  TEXT
);
CREATE INDEX IF NOT EXISTS idx_places_categories ON places USING GIN (categories);
CREATE INDEX IF NOT EXISTS idx_places_text ON places
	USING GIN (to_tsvector('simple', coalesce(name, '') || ' ' || coalesce(description, '')));

CREATE TABLE IF NOT EXISTS search_logs (
	id               BIGSERIAL PRIMARY KEY,
	session_id       TEXT,
	intent           JSONB,
	branch           TEXT,
	filter           TEXT,
	result_count     INTEGER,
	place_ids        JSONB,
	response_time_ms INTEGER,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresRepository handles database operations against PostgreSQL
type PostgresRepository struct {
	sqlStore
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{sqlStore{db: db, dialect: DialectPostgres}}, nil
}

// Migrate creates the schema if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}
