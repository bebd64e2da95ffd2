package fs

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetryNil(t *testing.T) {
	assert.False(t, ShouldRetry(context.Background(), nil))
}

func TestShouldRetryGenericError(t *testing.T) {
	assert.False(t, ShouldRetry(context.Background(), fmt.Errorf("just broken")))
}

func TestShouldRetryClosedConnection(t *testing.T) {
	err := fmt.Errorf("read: %w", fmt.Errorf("use of closed network connection"))
	assert.True(t, ShouldRetry(context.Background(), err))
}

func TestShouldRetryEOF(t *testing.T) {
	assert.True(t, ShouldRetry(context.Background(), io.EOF))
	assert.True(t, ShouldRetry(context.Background(), io.ErrUnexpectedEOF))
}

func TestShouldRetryWrappedURLError(t *testing.T) {
	err := &url.Error{Op: "Get", URL: "http://example.com", Err: &net.OpError{
		Op:  "read",
		Err: syscall.ECONNRESET,
	}}
	assert.True(t, ShouldRetry(context.Background(), err))
}

func TestShouldRetryWrappedNonRetriableErrno(t *testing.T) {
	err := &net.OpError{Op: "read", Err: syscall.EACCES}
	assert.False(t, ShouldRetry(context.Background(), err))
}

func TestShouldRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ShouldRetry(ctx, io.EOF))
}
