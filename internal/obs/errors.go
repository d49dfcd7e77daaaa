package obs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when the server asks for a password and
	// none is configured.
	ErrAuthRequired = errors.New("obs: server requires a password")

	// ErrHandshake is returned when the Hello/Identify exchange goes wrong.
	ErrHandshake = errors.New("obs: handshake failed")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("obs: client closed")
)

// RequestError is a request the server answered with a failure status.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("obs: %s failed with code %d", e.RequestType, e.Code)
	}
	return fmt.Sprintf("obs: %s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
}
