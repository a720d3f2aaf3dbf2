// Package capture owns the virtual audio sink recording for a meeting
// session. It produces exactly one finished audio artifact per session,
// bounded by the lifecycle machine's RECORDING state: Start is called on
// entering RECORDING and Stop on leaving it, nowhere else.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
)

// Recorder records a virtual audio sink to a file. Implementations wrap a
// recording process (ffmpeg in production); tests inject fakes.
type Recorder interface {
	// Start begins recording the sink to outputPath. It returns an error if
	// the sink cannot be acquired, which is fatal to the session.
	Start(ctx context.Context, sink, outputPath string) error

	// Stop flushes and closes the recording. It must not return before the
	// artifact is durable.
	Stop() error
}

// RecorderFactory builds one Recorder per session.
type RecorderFactory func() Recorder

// Config holds capture settings.
type Config struct {
	// SinkName is the virtual sink shared with the meeting room client.
	SinkName string

	// OutputDir is where finished recordings are written.
	OutputDir string
}

// Handle identifies one in-flight recording.
type Handle struct {
	SessionID uuid.UUID

	mu        sync.Mutex
	recorder  Recorder
	path      string
	startedAt time.Time
	stoppedAt time.Time
	stopped   bool
	stopErr   error
}

// StartedAt returns when recording began.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// StoppedAt returns when recording stopped, zero while recording.
func (h *Handle) StoppedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stoppedAt
}

// Manager produces one audio artifact per session. Each session owns its own
// Handle; no session may touch another's recording.
type Manager struct {
	cfg         Config
	newRecorder RecorderFactory
	logger      logging.Logger
}

// NewManager creates a capture manager.
func NewManager(cfg Config, factory RecorderFactory, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Manager{
		cfg:         cfg,
		newRecorder: factory,
		logger:      logger.With(logging.F("component", "capture_manager")),
	}
}

// Start acquires the virtual sink and begins recording for the session.
// Failure to acquire the sink is fatal to the session.
func (m *Manager) Start(ctx context.Context, sessionID uuid.UUID) (*Handle, error) {
	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return nil, renaerrors.NewSessionError(renaerrors.ReasonStorageFailed, "",
			"failed to create recording directory", err)
	}

	path := filepath.Join(m.cfg.OutputDir, fmt.Sprintf("%s.wav", sessionID))
	rec := m.newRecorder()

	if err := rec.Start(ctx, m.cfg.SinkName, path); err != nil {
		return nil, renaerrors.NewSessionError(renaerrors.ReasonCaptureFailed, "",
			fmt.Sprintf("failed to acquire sink %q", m.cfg.SinkName), err)
	}

	m.logger.Info("Recording started",
		logging.F("session_id", sessionID.String()),
		logging.F("path", path))

	return &Handle{
		SessionID: sessionID,
		recorder:  rec,
		path:      path,
		startedAt: time.Now(),
	}, nil
}

// Stop flushes and closes the recording and returns the artifact path. It is
// idempotent: calling it again returns the same artifact without re-recording.
func (m *Manager) Stop(h *Handle) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return h.path, h.stopErr
	}
	h.stopped = true
	h.stoppedAt = time.Now()

	if err := h.recorder.Stop(); err != nil {
		h.stopErr = renaerrors.NewSessionError(renaerrors.ReasonStorageFailed, "",
			"failed to flush recording", err)
		return "", h.stopErr
	}

	m.logger.Info("Recording stopped",
		logging.F("session_id", h.SessionID.String()),
		logging.F("path", h.path),
		logging.F("duration", h.stoppedAt.Sub(h.startedAt)))

	return h.path, nil
}
