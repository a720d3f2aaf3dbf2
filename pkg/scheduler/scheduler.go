// Package scheduler watches calendar events and dispatches bot sessions for
// meetings that just started. An event is joined at most once: an active
// session for the same meeting URL suppresses re-dispatch.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"

	renaerrors "github.com/renalabs/rena/pkg/errors"
)

// graceWindow extends the join window past the configured delay so a slow
// poll cycle cannot miss a meeting entirely.
const graceWindow = 60 * time.Second

// Event is a calendar entry that may carry a joinable meeting link.
type Event struct {
	ID         string
	UserID     string
	Title      string
	MeetingURL string
	Start      time.Time

	// AutoJoin is the per-event opt-out. Events with it unset are ignored.
	AutoJoin bool
}

// CalendarSource lists events around the current time.
type CalendarSource interface {
	UpcomingEvents(ctx context.Context) ([]Event, error)
}

// SessionStore is the session persistence surface the scheduler needs.
type SessionStore interface {
	Create(ctx context.Context, s *meeting.Session) error
	FindActiveByURL(ctx context.Context, userID, meetingURL string) (*meeting.Session, error)
}

// Runner launches the bot lifecycle for a newly created session.
type Runner interface {
	Dispatch(ctx context.Context, session *meeting.Session) error
}

// Config holds scheduler settings.
type Config struct {
	// PollInterval is how often the calendar is checked.
	PollInterval time.Duration

	// JoinDelay is how long after the event start the bot is still considered
	// on time. The effective join window is JoinDelay plus a fixed grace.
	JoinDelay time.Duration
}

// Scheduler polls a calendar source and dispatches sessions.
type Scheduler struct {
	source CalendarSource
	store  SessionStore
	runner Runner
	cfg    Config
	logger logging.Logger

	now func() time.Time
}

// New creates a scheduler.
func New(source CalendarSource, store SessionStore, runner Runner, cfg Config, logger logging.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Scheduler{
		source: source,
		store:  store,
		runner: runner,
		cfg:    cfg,
		logger: logger.With(logging.F("component", "scheduler")),
		now:    time.Now,
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		logging.F("poll_interval", s.cfg.PollInterval),
		logging.F("join_window", s.cfg.JoinDelay+graceWindow))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("Scheduler tick failed", logging.Err(err))
			}
		}
	}
}

// Tick checks the calendar once and dispatches every joinable event.
func (s *Scheduler) Tick(ctx context.Context) error {
	events, err := s.source.UpcomingEvents(ctx)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if !s.joinable(ev) {
			continue
		}
		if err := s.dispatch(ctx, ev); err != nil {
			s.logger.Error("Failed to dispatch event",
				logging.F("event_id", ev.ID),
				logging.Err(err))
		}
	}
	return nil
}

// joinable reports whether the event should be joined right now: opted in,
// carries a recognized meeting link, and started within the join window.
func (s *Scheduler) joinable(ev Event) bool {
	if !ev.AutoJoin || ev.MeetingURL == "" {
		return false
	}
	if meeting.DetectPlatform(ev.MeetingURL) == meeting.PlatformUnknown {
		return false
	}
	elapsed := s.now().Sub(ev.Start)
	return elapsed >= 0 && elapsed <= s.cfg.JoinDelay+graceWindow
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) error {
	_, err := s.store.FindActiveByURL(ctx, ev.UserID, ev.MeetingURL)
	if err == nil {
		s.logger.Debug("Meeting already has an active session",
			logging.F("event_id", ev.ID))
		return nil
	}
	if !errors.Is(err, renaerrors.ErrNotFound) {
		return err
	}

	start := ev.Start
	session := meeting.NewSession(ev.UserID, ev.MeetingURL, &start)
	session.Title = ev.Title

	if err := s.store.Create(ctx, session); err != nil {
		return err
	}

	s.logger.Info("Dispatching bot for meeting",
		logging.F("session_id", session.ID.String()),
		logging.F("title", ev.Title),
		logging.F("platform", string(session.Platform)))

	return s.runner.Dispatch(ctx, session)
}
