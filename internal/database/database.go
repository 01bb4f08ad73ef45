package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"playpoints/internal/logging"
)

// DB wraps the database connection
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
}

// New creates a new database connection
func New(dsn string, logger *logging.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// All periodic loops and event handlers share this pool.
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	// Initialize tables and run migrations
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.migrateSchema()

	return db, nil
}

// NewWithConn wraps an existing connection without touching the schema
func NewWithConn(conn *sql.DB, logger *logging.Logger) *DB {
	return &DB{conn: conn, logger: logger}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables
func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			points INTEGER NOT NULL,
			interaction_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS voice_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			left_at TIMESTAMPTZ,
			duration_seconds BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS activity_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			activity_name TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			duration_seconds BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			was_moderated BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS member_tenure (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			last_checked TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, user_id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// migrateSchema handles database schema migrations
func (db *DB) migrateSchema() {
	migrations := []string{
		// Older deployments stored the moderation flag elsewhere
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS was_moderated BOOLEAN NOT NULL DEFAULT FALSE`,

		// Ranking queries filter by guild and a yearly window
		`CREATE INDEX IF NOT EXISTS idx_ledger_guild_created ON ledger_entries (guild_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_voice_guild_joined ON voice_sessions (guild_id, joined_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_guild_started ON activity_sessions (guild_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_guild_created ON messages (guild_id, created_at)`,

		// Startup recovery scans open sessions only
		`CREATE INDEX IF NOT EXISTS idx_voice_open ON voice_sessions (user_id) WHERE left_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_activity_open ON activity_sessions (user_id) WHERE ended_at IS NULL`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			db.logger.Warn("migration_failed", "error", err)
		}
	}
}
