package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrUnavailable is returned when a remote cache backend cannot be reached.
var ErrUnavailable = errors.New("cache backend unavailable")

// BackendError records a failed cache operation. The pipeline runner treats
// any BackendError as a miss, so a broken cache slows generation down but
// never fails it.
type BackendError struct {
	Backend string // "file" or "redis"
	Op      string // "get", "set", "delete" or "ping"
	Key     string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s cache %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s cache %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Transient reports whether the operation may succeed if retried: network
// failures, timeouts and dropped connections.
func (e *BackendError) Transient() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	var ne net.Error
	return errors.As(e.Err, &ne) ||
		errors.Is(e.Err, context.DeadlineExceeded) ||
		errors.Is(e.Err, io.EOF) ||
		errors.Is(e.Err, io.ErrUnexpectedEOF)
}

func backendError(backend, op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Key: key, Err: err}
}

// IsTransient reports whether err is a transient [BackendError].
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient()
}

// RetryPolicy bounds how often a transient backend failure is retried.
// The delay doubles after each failed attempt.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is used when a policy is left zero.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 250 * time.Millisecond}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	return p
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts,
// and returns the last error. Cancelling ctx stops the wait between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	p = p.withDefaults()
	delay := p.Delay
	var err error
	for i := range p.Attempts {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == p.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return err
}
