// Package errors provides common domain error types for the rena application.
//
// It defines sentinel errors for common domain conditions and a ReasonCode
// taxonomy for session-level failures. Using typed errors enables consistent
// handling with errors.Is() checks across the pipeline.
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrServiceUnavailable indicates an external collaborator could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrQuotaExceeded indicates an external service rejected the call on quota.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrSchemaInvalid indicates a synthesis response failed schema validation.
	ErrSchemaInvalid = errors.New("schema invalid")

	// ErrNoRelevantMeeting indicates no knowledge chunk scoped to the user met
	// the similarity threshold. Callers surface this as "no relevant meeting
	// found", never as a generic failure.
	ErrNoRelevantMeeting = errors.New("no relevant meeting found")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err represents a transient external-service
// condition worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrQuotaExceeded)
}

// IsNoRelevantMeeting reports whether any error in err's chain is ErrNoRelevantMeeting.
func IsNoRelevantMeeting(err error) bool {
	return errors.Is(err, ErrNoRelevantMeeting)
}
