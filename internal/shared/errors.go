package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Classification errors
	ErrDecode     = fmt.Errorf("unreadable image")
	ErrClassifier = fmt.Errorf("classifier failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Persistence errors
	ErrPersistence = fmt.Errorf("persistence failed")
	ErrNotFound    = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Error kinds reported to API clients.
const (
	KindDecode      = "decode"
	KindClassifier  = "classifier"
	KindTimeout     = "timeout"
	KindPersistence = "persistence"
	KindNotFound    = "not_found"
	KindInvalid     = "invalid_input"
	KindInternal    = "internal"
)

// ErrorKind maps err to a stable kind string.
//
// Timeouts are checked before classifier failures since a timed out oracle call carries both.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrClassifier):
		return KindClassifier
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return KindInvalid
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}
