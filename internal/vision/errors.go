package vision

import "errors"

var (
	// ErrQuotaExhausted means the provider rejected the call for rate or
	// quota reasons. The caller must not charge the user for it.
	ErrQuotaExhausted = errors.New("vision provider quota exhausted")

	// ErrUnavailable covers transport failures, timeouts and provider 5xx.
	ErrUnavailable = errors.New("vision provider unavailable")

	// ErrMalformedOutput means the provider answered but the payload did not
	// decode into the expected JSON shape.
	ErrMalformedOutput = errors.New("vision provider returned malformed output")
)
