package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: DNS, refused connections, timeouts.
	ErrNetwork = errors.New("network error")

	// ErrRejected matches any non-2xx response from the API.
	ErrRejected = errors.New("rejected by remote")

	// ErrNotFound matches a 404 response.
	ErrNotFound = errors.New("not found on remote")

	// ErrProtocol is returned when a response body cannot be decoded.
	ErrProtocol = errors.New("protocol error")
)

// APIError is a non-2xx response from the event API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%s %s, status %d): %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets callers match APIError against ErrRejected and, for 404, ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
