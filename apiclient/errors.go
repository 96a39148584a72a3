package apiclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common error values for the platform API client.
var (
	// ErrTransport marks network-level failures: unreachable host, timeouts,
	// connection resets. These may be transient.
	ErrTransport = errors.New("transport failure")

	// ErrUnauthorized marks an authorization rejection from the server. Any
	// authenticated call answered this way means the session is no longer
	// valid and must be destroyed by the caller.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx answer from the platform carrying a server-supplied
// message. The message is safe to surface verbatim to the user.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("platform API error (status %d)", e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match authorization
// rejections without losing the server message.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return nil
}

// ServerMessage extracts the server-supplied message from an error chain, or
// returns the empty string when the failure was not an API answer.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
