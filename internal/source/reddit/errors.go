package reddit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/ddharvester/internal/source"
)

// APIError is a non-200 response from the API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Wait       time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// RetryAfter returns the server-requested wait, if any.
func (e *APIError) RetryAfter() time.Duration {
	return e.Wait
}

// Unwrap maps a 404 to source.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return source.ErrNotFound
	}
	return nil
}
