package analyses

import "errors"

var (
	// ErrNotAdmitted covers requests refused before any AI work: an unknown
	// user or a missing object context.
	ErrNotAdmitted = errors.New("not admitted")

	// ErrNoCredits refuses a submission because the user's balance is zero.
	// Like ErrNotAdmitted it is raised before any AI work, but callers need
	// to tell the two apart to point the user at a top-up.
	ErrNoCredits = errors.New("no credits left")

	// ErrQuotaExhausted means the AI provider's own rate or usage quota was
	// hit. Retryable after backoff; the user is not charged.
	ErrQuotaExhausted = errors.New("provider quota exhausted")

	// ErrServiceUnavailable means the AI provider could not serve the
	// detailed analysis. The user is not charged.
	ErrServiceUnavailable = errors.New("analysis service unavailable")

	// ErrMalformedOutput means the provider's detailed analysis did not
	// decode. The user is not charged.
	ErrMalformedOutput = errors.New("analysis output malformed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid defect status transition")
)

const (
	ErrorCodeNotAdmitted        = "NOT_ADMITTED"
	ErrorCodeNoCredits          = "NO_CREDITS"
	ErrorCodeQuotaExhausted     = "QUOTA_EXHAUSTED"
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrorCodeMalformedOutput    = "MALFORMED_OUTPUT"
	ErrorCodePersistence        = "PERSISTENCE_FAILURE"
	ErrorCodeInternal           = "INTERNAL_ERROR"
)
