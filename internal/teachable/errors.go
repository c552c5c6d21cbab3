package teachable

import (
	"errors"
	"fmt"
)

// ErrRateLimited reports that the API kept answering 429 until the retry
// budget was exhausted.
var ErrRateLimited = errors.New("teachable: rate limit retries exhausted")

// APIError is a terminal HTTP failure (status >= 400, other than 429).
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teachable: %s returned %s", e.Endpoint, e.Status)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
