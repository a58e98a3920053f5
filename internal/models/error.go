package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Gate errors, surfaced to the caller with an actionable message
	ErrQuotaExceeded     = errors.New("monthly quota exhausted")
	ErrFeatureDisabled   = errors.New("feature not available for this plan")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Provider errors
	ErrAuthUnavailable   = errors.New("provider credential unavailable")
	ErrTaskTimeout       = errors.New("provider task did not complete in time")
	ErrTaskFailed        = errors.New("provider task failed")
	ErrMalformedResponse = errors.New("provider returned a malformed response")
	ErrTransport         = errors.New("transport failure")

	// ErrSearchTimeout is returned when the overall search deadline expired
	// before any usable result was assembled.
	ErrSearchTimeout = errors.New("search timed out")
)

// IsCandidateFailure reports whether err only disqualifies a single candidate
// (domain or prospect) and should be logged and skipped.
func IsCandidateFailure(err error) bool {
	return errors.Is(err, ErrTaskTimeout) ||
		errors.Is(err, ErrTaskFailed) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrTransport)
}
