package services

import "errors"

var (
	// ErrNoActiveSession is returned when a resume is attempted with nothing
	// persisted to resume from
	ErrNoActiveSession = errors.New("no resumable verification session")

	// ErrAccountDisabled is returned when the identity was verified but the
	// linked account is disabled. Terminal: no fallback lookup is attempted
	// and retrying the proof will not help.
	ErrAccountDisabled = errors.New("pensioner account is disabled")

	// ErrAccountInvalid is returned when the account could not be resolved by
	// either lookup strategy
	ErrAccountInvalid = errors.New("pensioner account could not be validated")

	// ErrCIDMismatch is returned when the liveness proof revealed a different
	// identity number than the logged-in one
	ErrCIDMismatch = errors.New("presented identity does not match the stored one")
)
