package upstream

import (
	"fmt"
	"time"
)

// StatusError — ответ backend-а с не-2xx статусом.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics API returned status %d: %s", e.Code, e.Body)
}

// ThrottleError несет Retry-After от backend-а, чтобы ретрай ждал ровно столько,
// сколько попросили, а не стандартный бэкофф.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
