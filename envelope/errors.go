package envelope

import "errors"

var (
	// ErrInvalidContent is returned when a data URL cannot be parsed or
	// carries an empty body, or when a script does not hold a well formed
	// envelope.
	ErrInvalidContent = errors.New("invalid inscription content")

	// ErrKeyDerivation is returned when the taproot output committing to
	// an envelope cannot be derived.
	ErrKeyDerivation = errors.New("taproot key derivation failed")

	// ErrInvalidParentLocator is returned for malformed parent references
	// and provenance locators.
	ErrInvalidParentLocator = errors.New("invalid parent locator")
)
