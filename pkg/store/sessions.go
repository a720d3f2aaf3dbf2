// Package store persists meeting sessions and intelligence reports in
// Postgres. All reads that return user data are scoped by user_id; there is
// deliberately no cross-user query surface.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// SessionRepository provides database operations for meeting sessions.
type SessionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(pool *pgxpool.Pool, logger logging.Logger) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "session_repository")),
	}
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, s *meeting.Session) error {
	query := `
		INSERT INTO meeting_sessions (
			id, user_id, meeting_url, platform, title, state,
			failure_reason, failed_from, scheduled_at, joined_at, left_at,
			audio_path, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.MeetingURL,
		string(s.Platform),
		nullIfEmpty(s.Title),
		string(s.State),
		nullIfEmpty(string(s.FailureReason)),
		nullIfEmpty(string(s.FailedFrom)),
		s.ScheduledAt,
		s.JoinedAt,
		s.LeftAt,
		nullIfEmpty(s.AudioPath),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("Session created",
		logging.F("session_id", s.ID.String()),
		logging.F("user_id", s.UserID))
	return nil
}

// Update persists the session's mutable fields. Called on every lifecycle
// transition so the stored state always matches the machine.
func (r *SessionRepository) Update(ctx context.Context, s *meeting.Session) error {
	query := `
		UPDATE meeting_sessions
		SET state = $2, failure_reason = $3, failed_from = $4, joined_at = $5,
		    left_at = $6, audio_path = $7, title = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		s.ID,
		string(s.State),
		nullIfEmpty(string(s.FailureReason)),
		nullIfEmpty(string(s.FailedFrom)),
		s.JoinedAt,
		s.LeftAt,
		nullIfEmpty(s.AudioPath),
		nullIfEmpty(s.Title),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return renaerrors.ErrNotFound
	}
	return nil
}

// Get returns a session by ID, scoped to the given user.
func (r *SessionRepository) Get(ctx context.Context, userID string, id uuid.UUID) (*meeting.Session, error) {
	query := `
		SELECT id, user_id, meeting_url, platform, title, state,
		       failure_reason, failed_from, scheduled_at, joined_at, left_at,
		       audio_path, created_at, updated_at
		FROM meeting_sessions
		WHERE id = $1 AND user_id = $2
	`
	s, err := scanSession(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, renaerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns the user's sessions newest first, up to limit.
func (r *SessionRepository) List(ctx context.Context, userID string, limit int) ([]*meeting.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, meeting_url, platform, title, state,
		       failure_reason, failed_from, scheduled_at, joined_at, left_at,
		       audio_path, created_at, updated_at
		FROM meeting_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*meeting.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// FindActiveByURL returns a non-terminal session for the given meeting URL,
// used to deduplicate auto-join dispatch. Returns ErrNotFound when no active
// session exists.
func (r *SessionRepository) FindActiveByURL(ctx context.Context, userID, meetingURL string) (*meeting.Session, error) {
	query := `
		SELECT id, user_id, meeting_url, platform, title, state,
		       failure_reason, failed_from, scheduled_at, joined_at, left_at,
		       audio_path, created_at, updated_at
		FROM meeting_sessions
		WHERE user_id = $1 AND meeting_url = $2
		  AND state NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1
	`
	s, err := scanSession(r.pool.QueryRow(ctx, query, userID, meetingURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, renaerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*meeting.Session, error) {
	var (
		s             meeting.Session
		platform      string
		state         string
		title         *string
		failureReason *string
		failedFrom    *string
		audioPath     *string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.MeetingURL, &platform, &title, &state,
		&failureReason, &failedFrom, &s.ScheduledAt, &s.JoinedAt, &s.LeftAt,
		&audioPath, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Platform = meeting.Platform(platform)
	s.State = meeting.State(state)
	if title != nil {
		s.Title = *title
	}
	if failureReason != nil {
		s.FailureReason = renaerrors.ReasonCode(*failureReason)
	}
	if failedFrom != nil {
		s.FailedFrom = meeting.State(*failedFrom)
	}
	if audioPath != nil {
		s.AudioPath = *audioPath
	}
	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
