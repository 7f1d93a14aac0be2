package api

import (
	"errors"
	"fmt"
)

// ErrTimeout marks a request that exceeded the client timeout. Callers treat
// it as "unconfirmed": the navigation state must not advance on it.
var ErrTimeout = errors.New("api: request timed out")

// APIError is a non-2xx response from a backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: unexpected status %d: %s", e.StatusCode, e.Body)
}

// TransportError is a connection-level failure (DNS, dial, TLS, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
