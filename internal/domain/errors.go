package domain

import "errors"

// ErrValidation is the parent of every malformed-input error; callers
// re-prompt on errors.Is(err, ErrValidation) instead of matching each
// specific one.
var ErrValidation = errors.New("validation failed")

var (
	ErrHostEmpty   = wrapValidation("host name empty")
	ErrHostTooLong = wrapValidation("host name too long")
	ErrCodeFormat  = wrapValidation("bad room code format")
	ErrUnknownMap  = wrapValidation("unknown map")
	ErrUnknownMode = wrapValidation("unknown mode")
)

var (
	// ErrCodeTaken means another live room already holds the code.
	ErrCodeTaken = errors.New("room code already taken")
	// ErrNotFound means no live room exists under the code.
	ErrNotFound = errors.New("room not found")
	// ErrForbidden means the requester is not the room's owner.
	ErrForbidden = errors.New("not the room owner")
	// ErrOwnerHasRoom is returned when one-room-per-owner is enforced.
	ErrOwnerHasRoom = errors.New("owner already has a live room")
	// ErrNoActiveFlow means the caller has no guided flow in progress.
	ErrNoActiveFlow = errors.New("no active flow")
	// ErrSnapshot marks a best-effort persistence failure; the
	// in-memory operation it accompanied still succeeded.
	ErrSnapshot = errors.New("snapshot failed")
)

func wrapValidation(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }
