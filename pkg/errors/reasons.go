package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReasonCode classifies why a session failed. Failed sessions are shown to the
// user with their terminal reason, so codes are stable strings.
type ReasonCode string

const (
	ReasonAdmissionTimeout         ReasonCode = "admission_timeout"
	ReasonAdmissionRejected        ReasonCode = "admission_rejected"
	ReasonCaptureFailed            ReasonCode = "capture_failed"
	ReasonCaptureDeviceLost        ReasonCode = "capture_device_lost"
	ReasonStorageFailed            ReasonCode = "storage_failed"
	ReasonTranscriptionUnavailable ReasonCode = "transcription_unavailable"
	ReasonDiarizationFailed        ReasonCode = "diarization_failed"
	ReasonCancelled                ReasonCode = "cancelled"
	ReasonRoomError                ReasonCode = "room_error"
	ReasonUnknown                  ReasonCode = "unknown"
)

// reasonDescriptions maps reason codes to user-facing descriptions.
var reasonDescriptions = map[ReasonCode]string{
	ReasonAdmissionTimeout:         "Bot was not admitted to the meeting within the wait window",
	ReasonAdmissionRejected:        "Meeting host rejected the bot's join request",
	ReasonCaptureFailed:            "Audio capture device could not be acquired",
	ReasonCaptureDeviceLost:        "Audio capture device disconnected during recording",
	ReasonStorageFailed:            "Recording could not be written to durable storage",
	ReasonTranscriptionUnavailable: "All transcription models failed or timed out",
	ReasonDiarizationFailed:        "Speaker diarization service failed",
	ReasonCancelled:                "Session cancelled by user",
	ReasonRoomError:                "Meeting room client reported an unrecoverable error",
	ReasonUnknown:                  "Unclassified failure",
}

// Describe returns the user-facing description for a reason code.
func (c ReasonCode) Describe() string {
	if d, ok := reasonDescriptions[c]; ok {
		return d
	}
	return reasonDescriptions[ReasonUnknown]
}

// SessionError is a structured error for session-level failures. It records
// the lifecycle state the failure originated from for diagnostics.
type SessionError struct {
	Reason    ReasonCode
	FromState string
	Message   string
	Duration  time.Duration
	Cause     error
}

func (e *SessionError) Error() string {
	if e.FromState != "" {
		return fmt.Sprintf("%s: from %s: %s", e.Reason, e.FromState, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// NewSessionError builds a SessionError for the given reason.
func NewSessionError(reason ReasonCode, fromState, msg string, cause error) *SessionError {
	return &SessionError{
		Reason:    reason,
		FromState: fromState,
		Message:   msg,
		Cause:     cause,
	}
}

// ReasonOf extracts the reason code from an error chain, classifying plain
// context errors along the way. Unrecognized errors map to ReasonUnknown.
func ReasonOf(err error) ReasonCode {
	if err == nil {
		return ""
	}
	var se *SessionError
	if errors.As(err, &se) {
		return se.Reason
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonAdmissionTimeout
	}
	return ReasonUnknown
}
