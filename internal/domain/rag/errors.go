package rag

import (
	"errors"
	"fmt"
)

// NetworkError is a transport-level failure of a backend call. Timeout
// and HTTP-status failures are distinguished so callers can word their
// recovery hints accordingly.
type NetworkError struct {
	Op         string // status, initialize, speech-to-text, ask
	StatusCode int    // non-zero for non-2xx responses
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("exceeded waiting time for %s", e.Op)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed: HTTP status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// BackendNotReadyError reports a deliberate initializing/error status
// from the backend, as opposed to a transport fault.
type BackendNotReadyError struct {
	Message string
}

func (e *BackendNotReadyError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "backend is initializing, try again in a few seconds"
}

// IsTimeout reports whether err is a backend call timeout.
func IsTimeout(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Timeout
}
