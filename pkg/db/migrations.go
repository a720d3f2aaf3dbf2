package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations holds the schema, applied in version order. Each entry runs at
// most once; applied versions are tracked in the schema_migrations table.
var migrations = map[string]string{
	"001_meeting_sessions": `
		CREATE TABLE IF NOT EXISTS meeting_sessions (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			meeting_url TEXT NOT NULL,
			platform TEXT NOT NULL,
			title TEXT,
			state TEXT NOT NULL,
			failure_reason TEXT,
			scheduled_at TIMESTAMPTZ,
			joined_at TIMESTAMPTZ,
			left_at TIMESTAMPTZ,
			audio_path TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_meeting_sessions_user ON meeting_sessions (user_id, created_at DESC);
	`,
	"002_intelligence_reports": `
		CREATE TABLE IF NOT EXISTS intelligence_reports (
			session_id UUID PRIMARY KEY REFERENCES meeting_sessions(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			summary_en TEXT,
			summary_hi TEXT,
			minutes JSONB NOT NULL DEFAULT '[]',
			actions JSONB NOT NULL DEFAULT '[]',
			transcript JSONB NOT NULL DEFAULT '[]',
			analytics JSONB NOT NULL DEFAULT '{}',
			synthesis_incomplete BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_intelligence_reports_user ON intelligence_reports (user_id, created_at DESC);
	`,
	"004_session_failed_from": `
		ALTER TABLE meeting_sessions ADD COLUMN IF NOT EXISTS failed_from TEXT;
	`,
	"003_knowledge_chunks": `
		CREATE TABLE IF NOT EXISTS knowledge_chunks (
			user_id TEXT NOT NULL,
			session_id UUID NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding REAL[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, session_id, chunk_index)
		);
		CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_user ON knowledge_chunks (user_id);
	`,
}

// RunMigrations applies all pending migrations in version order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(migrations))
	for v := range migrations {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	var ran []string
	for _, v := range versions {
		if applied[v] {
			continue
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return ran, fmt.Errorf("failed to begin migration %s: %w", v, err)
		}
		if _, err := tx.Exec(ctx, migrations[v]); err != nil {
			_ = tx.Rollback(ctx)
			return ran, fmt.Errorf("migration %s failed: %w", v, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
			_ = tx.Rollback(ctx)
			return ran, fmt.Errorf("failed to record migration %s: %w", v, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return ran, fmt.Errorf("failed to commit migration %s: %w", v, err)
		}
		ran = append(ran, v)
	}

	return ran, nil
}
