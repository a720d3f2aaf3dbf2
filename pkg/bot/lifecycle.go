// Package bot drives a meeting session through its lifecycle:
// SCHEDULED -> JOINING -> WAITING_ROOM -> IN_MEETING -> RECORDING -> LEAVING
// -> COMPLETED, with FAILED reachable from any non-terminal state and
// CANCELLED only from SCHEDULED/JOINING.
//
// One Machine runs per dispatched meeting, each owning its own room client
// and capture resources. The machine is cooperative: it polls room state and
// reacts, which keeps the join/leave/idle logic testable without a browser.
// State transitions are the only place audio capture starts or stops, so
// capture lifetime exactly bounds the RECORDING state.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renalabs/rena/pkg/bot/capture"
	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// CaptureManager is the slice of the capture manager the machine needs.
type CaptureManager interface {
	Start(ctx context.Context, sessionID uuid.UUID) (*capture.Handle, error)
	Stop(h *capture.Handle) (string, error)
}

// TransitionObserver is notified after every state change, typically to
// persist the session record.
type TransitionObserver func(s *meeting.Session)

// Config holds the lifecycle timing knobs.
type Config struct {
	// PollInterval is how often room state is observed.
	PollInterval time.Duration

	// AdmissionTimeout bounds the waiting-room stay.
	AdmissionTimeout time.Duration

	// IdleRoomTimeout is how long the room may be observed empty (zero other
	// participants) before the bot leaves.
	IdleRoomTimeout time.Duration
}

// Machine is the lifecycle state machine for one session.
type Machine struct {
	session *meeting.Session
	room    RoomClient
	capture CaptureManager
	cfg     Config
	observe TransitionObserver
	logger  logging.Logger

	mu        sync.Mutex
	cancelled bool
	cancelRun context.CancelFunc
}

// NewMachine creates a lifecycle machine for the given session.
func NewMachine(session *meeting.Session, room RoomClient, cap CaptureManager, cfg Config, observe TransitionObserver, logger logging.Logger) *Machine {
	if observe == nil {
		observe = func(*meeting.Session) {}
	}
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Machine{
		session: session,
		room:    room,
		capture: cap,
		cfg:     cfg,
		observe: observe,
		logger: logger.With(
			logging.F("component", "bot_lifecycle"),
			logging.F("session_id", session.ID.String())),
	}
}

// Session returns the session the machine drives.
func (m *Machine) Session() *meeting.Session { return m.session }

// Cancel requests cancellation. It is valid only while the session is in
// SCHEDULED or JOINING, is idempotent, and is safe mid-join: the room client
// is told to abort. Returns ErrInvalidState once the session has progressed
// past JOINING.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled {
		return nil
	}
	switch m.session.State {
	case meeting.StateScheduled, meeting.StateJoining:
		m.cancelled = true
		if m.cancelRun != nil {
			m.cancelRun()
		}
		return nil
	case meeting.StateCancelled:
		return nil
	default:
		return renaerrors.ErrInvalidState
	}
}

func (m *Machine) cancelRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Run drives the session to a terminal state. It blocks until the session is
// COMPLETED, FAILED, or CANCELLED and always leaves the session terminal.
func (m *Machine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancelRun = cancel
	alreadyCancelled := m.cancelled
	m.mu.Unlock()

	if alreadyCancelled {
		m.finishCancelled()
		return nil
	}

	m.transition(meeting.StateJoining)

	result, err := m.room.Join(ctx, m.session.MeetingURL)
	if m.cancelRequested() {
		m.abortJoin()
		return nil
	}
	if err != nil {
		return m.fail(meeting.StateJoining, renaerrors.ReasonRoomError, err)
	}

	switch result.Status {
	case JoinRejected:
		return m.fail(meeting.StateJoining, renaerrors.ReasonAdmissionRejected, nil)
	case JoinWaiting:
		m.transition(meeting.StateWaitingRoom)
		if err := m.waitForAdmission(ctx); err != nil {
			m.leaveQuietly()
			return m.fail(meeting.StateWaitingRoom, renaerrors.ReasonOf(err), err)
		}
	case JoinAdmitted:
		// fall through
	}

	now := time.Now().UTC()
	m.session.JoinedAt = &now
	m.transition(meeting.StateInMeeting)

	handle, err := m.capture.Start(ctx, m.session.ID)
	if err != nil {
		m.leaveQuietly()
		return m.fail(meeting.StateInMeeting, renaerrors.ReasonOf(err), err)
	}

	m.transition(meeting.StateRecording)

	monitorErr := m.monitorRecording(ctx)

	m.transition(meeting.StateLeaving)

	// Stopping capture is the only blocking step on RECORDING -> LEAVING;
	// the artifact must be durable before the session can complete.
	artifact, stopErr := m.capture.Stop(handle)
	m.leaveQuietly()

	left := time.Now().UTC()
	m.session.LeftAt = &left

	if stopErr != nil {
		return m.fail(meeting.StateLeaving, renaerrors.ReasonOf(stopErr), stopErr)
	}
	m.session.AudioPath = artifact

	if monitorErr != nil {
		return m.fail(meeting.StateRecording, renaerrors.ReasonOf(monitorErr), monitorErr)
	}

	m.transition(meeting.StateCompleted)
	return nil
}

// waitForAdmission polls the waiting room until admitted or the bounded wait
// window elapses.
func (m *Machine) waitForAdmission(ctx context.Context) error {
	deadline := time.Now().Add(m.cfg.AdmissionTimeout)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return renaerrors.NewSessionError(renaerrors.ReasonCancelled,
				string(meeting.StateWaitingRoom), "context cancelled while waiting", ctx.Err())
		case <-ticker.C:
			admitted, err := m.room.ObserveAdmitted(ctx)
			if err != nil {
				return renaerrors.NewSessionError(renaerrors.ReasonRoomError,
					string(meeting.StateWaitingRoom), "failed to observe waiting room", err)
			}
			if admitted {
				return nil
			}
			if time.Now().After(deadline) {
				return renaerrors.NewSessionError(renaerrors.ReasonAdmissionTimeout,
					string(meeting.StateWaitingRoom), "admission timeout", nil)
			}
		}
	}
}

// monitorRecording watches the room until one of the two valid leave triggers
// fires: the call-ended signal, or the room observed empty for longer than the
// idle threshold. A nil return means a valid trigger; an error means the
// session must fail after capture is flushed.
func (m *Machine) monitorRecording(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	var idleSince time.Time

	for {
		select {
		case <-ctx.Done():
			return renaerrors.NewSessionError(renaerrors.ReasonCancelled,
				string(meeting.StateRecording), "context cancelled during recording", ctx.Err())
		case <-ticker.C:
			ended, err := m.room.ObserveCallEnded(ctx)
			if err != nil {
				return renaerrors.NewSessionError(renaerrors.ReasonRoomError,
					string(meeting.StateRecording), "failed to observe call state", err)
			}
			if ended {
				m.logger.Info("Call ended signal observed")
				return nil
			}

			count, err := m.room.ObserveParticipantCount(ctx)
			if err != nil {
				return renaerrors.NewSessionError(renaerrors.ReasonRoomError,
					string(meeting.StateRecording), "failed to observe participants", err)
			}
			if count == 0 {
				if idleSince.IsZero() {
					idleSince = time.Now()
					m.logger.Info("Room is empty, idle countdown started")
				} else if time.Since(idleSince) > m.cfg.IdleRoomTimeout {
					m.logger.Info("Idle-room threshold exceeded, leaving",
						logging.F("idle_for", time.Since(idleSince)))
					return nil
				}
			} else if !idleSince.IsZero() {
				idleSince = time.Time{}
				m.logger.Debug("Participants returned, idle countdown reset")
			}
		}
	}
}

// abortJoin handles a cancel that landed while the join was mid-flight.
func (m *Machine) abortJoin() {
	m.leaveQuietly()
	m.finishCancelled()
}

func (m *Machine) finishCancelled() {
	m.transition(meeting.StateCancelled)
	m.logger.Info("Session cancelled")
}

// fail moves the session to FAILED, recording the originating state and
// reason for diagnostics.
func (m *Machine) fail(from meeting.State, reason renaerrors.ReasonCode, cause error) error {
	if reason == "" || reason == renaerrors.ReasonUnknown {
		if r := renaerrors.ReasonOf(cause); r != "" {
			reason = r
		}
	}
	m.session.FailureReason = reason
	m.session.FailedFrom = from
	m.transition(meeting.StateFailed)

	m.logger.Error("Session failed",
		logging.F("from_state", string(from)),
		logging.F("reason", string(reason)),
		logging.Err(cause))

	if cause != nil {
		var se *renaerrors.SessionError
		if errors.As(cause, &se) {
			return cause
		}
	}
	return renaerrors.NewSessionError(reason, string(from), reason.Describe(), cause)
}

// leaveQuietly departs the room on a best-effort basis; the session outcome
// does not depend on a clean leave.
func (m *Machine) leaveQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.room.Leave(ctx); err != nil {
		m.logger.Warn("Failed to leave meeting cleanly", logging.Err(err))
	}
}

// transition moves the session to the given state and notifies the observer.
func (m *Machine) transition(to meeting.State) {
	m.mu.Lock()
	from := m.session.State
	m.session.State = to
	m.session.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()

	m.logger.Info("State transition",
		logging.F("from", string(from)),
		logging.F("to", string(to)))
	m.observe(m.session)
}
