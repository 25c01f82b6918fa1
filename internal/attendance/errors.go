package attendance

import "errors"

// Error kinds surfaced by the decision pipeline. Policy rejections
// (outside window, debounced) are results, not errors.
var (
	// ErrRecognizerUnavailable means the recognizer could not be invoked:
	// model not loaded, backend failure or timeout.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")

	// ErrInvalidConfiguration is returned for malformed time windows and other
	// settings that must be rejected up front instead of reinterpreted.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPersistenceFailure means a roster snapshot or ledger append failed.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrUnknownIdentity is returned when an identity is not in the roster.
	ErrUnknownIdentity = errors.New("unknown identity")
)
