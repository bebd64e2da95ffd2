package fs

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/rclone/filerelay/fs/fserrors"
)

// ShouldRetry looks at a received error and returns true if it should be
// retried, following the same classification rclone applies to every
// backend call: context cancellation and explicit Fataler errors are
// never retried; fserrors.Retrier errors defer to their own verdict;
// closed connections, EOF and a known set of retriable syscall errnos are
// retried; everything else is not.
func ShouldRetry(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	if fserrors.IsFatalError(err) {
		return false
	}
	var r fserrors.Retrier
	if errors.As(err, &r) {
		return r.Retry()
	}
	if isClosedConnError(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return shouldRetryErrno(err)
}

// isClosedConnError reports whether err indicates use of an already
// closed network connection, which is always safe and necessary to retry
// against a freshly dialled connection.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// retriableErrno is the set of syscall errors worth retrying: resource
// exhaustion and connection-reset style failures that are usually
// transient on a loaded host.
var retriableErrno = map[syscall.Errno]bool{
	syscall.ECONNRESET:   true,
	syscall.ECONNABORTED: true,
	syscall.ECONNREFUSED: true,
	syscall.ETIMEDOUT:    true,
	syscall.EPIPE:        true,
	syscall.EAGAIN:       true,
}

// shouldRetryErrno unwraps net/url style error chains down to a
// syscall.Errno and checks it against retriableErrno.
func shouldRetryErrno(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		err = opErr.Err
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return retriableErrno[errno]
	}
	return false
}
