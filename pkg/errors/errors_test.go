package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrQuotaExceeded))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrTimeout)))

	assert.False(t, IsRetryable(ErrSchemaInvalid))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("other")))
}

func TestSessionErrorUnwrap(t *testing.T) {
	cause := errors.New("sink missing")
	err := NewSessionError(ReasonCaptureFailed, "IN_MEETING", "failed to start capture", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to start capture")

	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonCaptureFailed, se.Reason)
	assert.Equal(t, "IN_MEETING", se.FromState)
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, ReasonAdmissionTimeout,
		ReasonOf(NewSessionError(ReasonAdmissionTimeout, "", "", nil)))
	assert.Equal(t, ReasonAdmissionTimeout,
		ReasonOf(fmt.Errorf("wrapped: %w", NewSessionError(ReasonAdmissionTimeout, "", "", nil))))
	assert.Equal(t, ReasonCancelled, ReasonOf(context.Canceled))
	assert.Equal(t, ReasonAdmissionTimeout, ReasonOf(context.DeadlineExceeded))
	assert.Equal(t, ReasonUnknown, ReasonOf(errors.New("mystery")))
}

func TestDescribeCoversAllReasons(t *testing.T) {
	reasons := []ReasonCode{
		ReasonAdmissionTimeout, ReasonAdmissionRejected, ReasonCaptureFailed,
		ReasonCaptureDeviceLost, ReasonStorageFailed, ReasonTranscriptionUnavailable,
		ReasonDiarizationFailed, ReasonCancelled, ReasonRoomError, ReasonUnknown,
	}
	for _, r := range reasons {
		assert.NotEmpty(t, r.Describe(), "reason %s", r)
	}
}
