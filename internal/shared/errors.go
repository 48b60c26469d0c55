package shared

import "errors"

var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown item, location or record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInactiveLocation indicates a movement against a deactivated location.
	ErrInactiveLocation = errors.New("location is inactive")
	// ErrInsufficientStock indicates an exit larger than the quantity held at the location.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrBusy indicates lock contention; the caller may retry.
	ErrBusy = errors.New("resource busy, try again")
	// ErrConflict indicates the record is referenced and cannot change.
	ErrConflict = errors.New("conflict")
	// ErrMissingActor occurs when the request carries no actor identity.
	ErrMissingActor = errors.New("actor identity missing")
)

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInactiveLocation),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrMissingActor):
		return err.Error()
	default:
		return "internal error"
	}
}
