package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Oracle is the external semantic service that locates candidate
// correspondences in free text. Its output is evidence, never ground truth:
// callers must not ask it to judge numeric equality.
type Oracle interface {
	// CompleteJSON sends one system+user exchange and returns the response
	// body with any wrapping markup already stripped. The body is expected
	// to be JSON but may arrive truncated or malformed.
	CompleteJSON(ctx context.Context, system, user string) ([]byte, error)
}

// ErrCapacity marks a request rejected for exceeding the transport's input
// capacity. Callers retry with the chunked strategy instead of backing off.
var ErrCapacity = errors.New("oracle input capacity exceeded")

// RetryableError indicates a transient transport failure.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable oracle error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// IsCapacity reports whether an error means the request was too large.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}
