// Package fserrors provides the error wrapping and classification types
// shared by every protocol adapter and the transfer worker, mirroring
// rclone's fs/fserrors package.
package fserrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Retrier is implemented by errors which know whether they should be
// retried.
type Retrier interface {
	error
	Retry() bool
}

// wrappedRetryError wraps an existing error giving it a different retry
// status
type wrappedRetryError struct {
	error
	retry bool
}

// Retry returns whether the error should be retried
func (w *wrappedRetryError) Retry() bool {
	return w.retry
}

// Cause returns the underlying error so github.com/pkg/errors.Cause sees
// through the wrapper. There is no Unwrap method, so the standard
// errors.Unwrap/Is/As machinery does not.
func (w *wrappedRetryError) Cause() error {
	return w.error
}

// RetryError makes an error which indicates it would like to be retried
func RetryError(err error) error {
	return &wrappedRetryError{error: err, retry: true}
}

// NoRetryError makes an error which indicates it should not be retried
func NoRetryError(err error) error {
	return &wrappedRetryError{error: err, retry: false}
}

// IsRetryError returns true if err conforms to the Retrier interface and
// is retriable.
func IsRetryError(err error) bool {
	var r Retrier
	if errors.As(err, &r) {
		return r.Retry()
	}
	return false
}

// fatalError is an error that indicates the whole process should give up.
type fatalError struct {
	error
}

// Fatal returns true, marking the error as process-fatal.
func (f *fatalError) Fatal() bool {
	return true
}

// Cause returns the underlying error
func (f *fatalError) Cause() error {
	return f.error
}

// Fataler is implemented by errors that should stop the process entirely,
// independent of per-call retry policy (e.g. "disk full").
type Fataler interface {
	error
	Fatal() bool
}

// FatalError makes an error that is fatal, for use when a failure means
// there is no point in the caller continuing at all.
func FatalError(err error) error {
	return &fatalError{error: err}
}

// IsFatalError returns true if err conforms to the Fataler interface and
// is marked fatal.
func IsFatalError(err error) bool {
	if f, ok := err.(Fataler); ok {
		return f.Fatal()
	}
	return false
}

// countedError counts how many times an error happened, used to surface a
// host's error tally without keeping a separate counter.
type countedError struct {
	error
	count int
}

// Count returns the number of times this error happened
func (c *countedError) Count() int {
	return c.count
}

// Cause returns the underlying error
func (c *countedError) Cause() error {
	return c.error
}

// Counter is implemented by errors which carry an occurrence count
type Counter interface {
	error
	Count() int
}

// CountError makes an error which carries an occurrence count with it
func CountError(count int, err error) error {
	return &countedError{error: err, count: count}
}

// Error creates a plain formatted error string, matching the signature of
// fmt.Errorf but living here so callers only need one error import.
func Error(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
