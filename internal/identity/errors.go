package identity

import (
	"errors"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned by calls that need a current session.
	ErrNotAuthenticated = errors.New("identity: not authenticated")
	// ErrInvalidResponse indicates the provider answered with an unexpected payload.
	ErrInvalidResponse = errors.New("identity: invalid provider response")
)

// Error is a provider-reported failure. Message is user-facing and is passed
// through to the UI unchanged.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return http.StatusText(e.Status)
}

// AsError extracts a provider error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
