package backend

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

var (
	// ErrTransient matches every TransientBackendError.
	ErrTransient = errors.New("transient backend error")
	// ErrFatal matches every FatalBackendError.
	ErrFatal = errors.New("fatal backend error")
)

// RetryPolicy bounds how backend calls are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// ExponentialBase multiplies the delay after every failed attempt.
	ExponentialBase float64
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// RetryableStatusCodes lists HTTP statuses classified as transient.
	RetryableStatusCodes []int
}

// DefaultRetryPolicy returns 5 attempts, base 7, 1s initial delay, retrying
// 429, 500, 503 and 504.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          5,
		ExponentialBase:      7,
		InitialDelay:         time.Second,
		RetryableStatusCodes: []int{429, 500, 503, 504},
	}
}

// Delay returns the wait after failed attempt n (1-based):
// InitialDelay * ExponentialBase^(n-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.ExponentialBase, float64(attempt-1)))
}

// Retryable reports whether statusCode is classified as transient.
func (p RetryPolicy) Retryable(statusCode int) bool {
	return slices.Contains(p.RetryableStatusCodes, statusCode)
}

// Validate checks the policy is usable.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.ExponentialBase < 1 {
		return fmt.Errorf("retry policy: exponential base must be >= 1, got %v", p.ExponentialBase)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry policy: initial delay must not be negative")
	}
	return nil
}

// TransientBackendError is a retryable backend failure. When returned from
// Caller.Call the retry attempts are exhausted.
type TransientBackendError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error (status %d, attempt %d): %v", e.StatusCode, e.Attempts, e.Err)
}

// Unwrap returns the provider error.
func (e *TransientBackendError) Unwrap() error { return e.Err }

// Is matches ErrTransient.
func (e *TransientBackendError) Is(target error) bool { return target == ErrTransient }

// FatalBackendError is a non-retryable backend failure.
type FatalBackendError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *FatalBackendError) Error() string {
	msg := "fatal backend error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the provider error.
func (e *FatalBackendError) Unwrap() error { return e.Err }

// Is matches ErrFatal.
func (e *FatalBackendError) Is(target error) bool { return target == ErrFatal }
