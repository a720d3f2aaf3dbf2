package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/renalabs/rena/pkg/logging"
)

// FFmpegRecorder records a PulseAudio sink monitor with an ffmpeg process.
type FFmpegRecorder struct {
	logger logging.Logger
	cmd    *exec.Cmd
}

// NewFFmpegRecorder returns a RecorderFactory producing ffmpeg recorders.
func NewFFmpegRecorder(logger logging.Logger) RecorderFactory {
	return func() Recorder {
		return &FFmpegRecorder{logger: logger.With(logging.F("component", "ffmpeg_recorder"))}
	}
}

// Start launches ffmpeg against the sink's monitor source.
func (r *FFmpegRecorder) Start(ctx context.Context, sink, outputPath string) error {
	// The room client's browser plays into the sink; its .monitor source
	// mirrors that output for recording.
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "pulse",
		"-i", sink+".monitor",
		"-ac", "1",
		"-ar", "16000",
		outputPath,
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.logger.Debug("ffmpeg recording started",
		logging.F("sink", sink),
		logging.F("output", outputPath))
	return nil
}

// Stop asks ffmpeg to finalize the file and waits for it to exit, so the
// artifact is durable before Stop returns.
func (r *FFmpegRecorder) Stop() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}

	// SIGINT makes ffmpeg write trailers and flush; SIGKILL would truncate.
	if err := r.cmd.Process.Signal(syscall.SIGINT); err != nil {
		return fmt.Errorf("failed to signal ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.cmd.Wait() }()

	select {
	case err := <-done:
		// ffmpeg exits 255 on SIGINT; that is a clean shutdown.
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return err
		}
		return nil
	case <-time.After(30 * time.Second):
		_ = r.cmd.Process.Kill()
		return fmt.Errorf("ffmpeg did not flush within 30s")
	}
}
