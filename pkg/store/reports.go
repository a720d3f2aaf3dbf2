package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// ReportRepository provides database operations for intelligence reports.
type ReportRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewReportRepository creates a report repository.
func NewReportRepository(pool *pgxpool.Pool, logger logging.Logger) *ReportRepository {
	return &ReportRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "report_repository")),
	}
}

// Save upserts the report for a session. Reprocessing a session overwrites
// the previous report.
func (r *ReportRepository) Save(ctx context.Context, rep *meeting.Report) error {
	minutesJSON, err := json.Marshal(rep.Minutes)
	if err != nil {
		return fmt.Errorf("failed to marshal minutes: %w", err)
	}
	actionsJSON, err := json.Marshal(rep.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	transcriptJSON, err := json.Marshal(rep.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	analyticsJSON, err := json.Marshal(rep.Analytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}

	query := `
		INSERT INTO intelligence_reports (
			session_id, user_id, summary_en, summary_hi,
			minutes, actions, transcript, analytics,
			synthesis_incomplete, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			summary_en = EXCLUDED.summary_en,
			summary_hi = EXCLUDED.summary_hi,
			minutes = EXCLUDED.minutes,
			actions = EXCLUDED.actions,
			transcript = EXCLUDED.transcript,
			analytics = EXCLUDED.analytics,
			synthesis_incomplete = EXCLUDED.synthesis_incomplete,
			updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query,
		rep.SessionID,
		rep.UserID,
		nullIfEmpty(rep.SummaryEN),
		nullIfEmpty(rep.SummaryHI),
		minutesJSON,
		actionsJSON,
		transcriptJSON,
		analyticsJSON,
		rep.SynthesisIncomplete,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	r.logger.Debug("Report saved",
		logging.F("session_id", rep.SessionID.String()),
		logging.F("incomplete", rep.SynthesisIncomplete))
	return nil
}

// Get returns the report for a session, scoped to the given user.
func (r *ReportRepository) Get(ctx context.Context, userID string, sessionID uuid.UUID) (*meeting.Report, error) {
	query := `
		SELECT session_id, user_id, summary_en, summary_hi,
		       minutes, actions, transcript, analytics,
		       synthesis_incomplete, created_at
		FROM intelligence_reports
		WHERE session_id = $1 AND user_id = $2
	`
	var (
		rep            meeting.Report
		summaryEN      *string
		summaryHI      *string
		minutesJSON    []byte
		actionsJSON    []byte
		transcriptJSON []byte
		analyticsJSON  []byte
	)
	err := r.pool.QueryRow(ctx, query, sessionID, userID).Scan(
		&rep.SessionID, &rep.UserID, &summaryEN, &summaryHI,
		&minutesJSON, &actionsJSON, &transcriptJSON, &analyticsJSON,
		&rep.SynthesisIncomplete, &rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, renaerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if summaryEN != nil {
		rep.SummaryEN = *summaryEN
	}
	if summaryHI != nil {
		rep.SummaryHI = *summaryHI
	}
	if err := json.Unmarshal(minutesJSON, &rep.Minutes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal minutes: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &rep.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	if err := json.Unmarshal(transcriptJSON, &rep.Transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	if err := json.Unmarshal(analyticsJSON, &rep.Analytics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analytics: %w", err)
	}
	return &rep, nil
}
