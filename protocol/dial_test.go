package protocol

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPermanentConnectError(t *testing.T) {
	assert.True(t, isPermanentConnectError(syscall.ECONNREFUSED))
	assert.True(t, isPermanentConnectError(syscall.ETIMEDOUT))
	assert.False(t, isPermanentConnectError(syscall.ECONNRESET))
}

func TestClassifyTimeout(t *testing.T) {
	assert.Equal(t, TimeoutOff, classifyTimeout(nil))
	assert.Equal(t, TimeoutConReset, classifyTimeout(syscall.ECONNRESET))
	assert.Equal(t, TimeoutConRefused, classifyTimeout(syscall.ECONNREFUSED))
	assert.Equal(t, TimeoutNeither, classifyTimeout(errors.New("some other error")))
}

func TestDialTCPAbortsImmediatelyOnPermanentError(t *testing.T) {
	// The port of a just-closed loopback listener refuses connections;
	// dialing it should fail fast rather than retrying 8 times with
	// backoff.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // now guaranteed refused

	start := time.Now()
	_, err = dialTCP(ctx, &net.Dialer{}, addr)
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.Less(t, elapsed, connectRetryBackoff) // aborted before even one backoff sleep
}

func TestTimeoutFlagString(t *testing.T) {
	assert.Equal(t, "off", TimeoutOff.String())
	assert.Equal(t, "on", TimeoutOn.String())
	assert.Equal(t, "con-reset", TimeoutConReset.String())
}
