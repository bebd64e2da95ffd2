package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lib/pacer"
)

// maxConnectRetries and connectRetryBackoff implement a bounded-retry
// loop: up to 8 rapid retries on a generic connect failure with
// 1-second backoff; a permanent error (refused or timed out) aborts
// immediately.
const (
	maxConnectRetries  = 8
	connectRetryBackoff = 1 * time.Second
)

// isPermanentConnectError reports whether err is one of the "permanent"
// dial failures (refused or timed out) that abort the retry loop
// immediately instead of being retried.
func isPermanentConnectError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNREFUSED || errno == syscall.ETIMEDOUT
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// dialTCP implements the connect-retry loop for a TCP peer,
// returning the live connection or a classified error. The adapter never
// retries after authentication; this function only covers the transport
// connect itself.
func dialTCP(ctx context.Context, dialer *net.Dialer, addr string) (net.Conn, error) {
	p := pacer.New(
		pacer.RetriesOption(maxConnectRetries),
		pacer.CalculatorOption(pacer.NewFixed(connectRetryBackoff)),
	)
	var conn net.Conn
	attempt := 0
	err := p.Call(func() (bool, error) {
		attempt++
		var derr error
		conn, derr = dialer.DialContext(ctx, "tcp", addr)
		if derr == nil {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if isPermanentConnectError(derr) {
			return false, derr
		}
		fs.Debugf(addr, "protocol: connect attempt %d/%d failed: %v", attempt, maxConnectRetries, derr)
		return true, derr
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: connect to %s: %w", addr, err)
	}
	return conn, nil
}

// classifyTimeout turns a socket I/O error into the TimeoutFlag the
// worker inspects to decide whether a graceful quit is safe.
func classifyTimeout(err error) TimeoutFlag {
	if err == nil {
		return TimeoutOff
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutOn
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET:
			return TimeoutConReset
		case syscall.ECONNREFUSED:
			return TimeoutConRefused
		}
	}
	return TimeoutNeither
}
