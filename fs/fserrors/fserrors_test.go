package fserrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryError(t *testing.T) {
	base := fmt.Errorf("broken")
	err := RetryError(base)
	r, ok := err.(Retrier)
	require.True(t, ok)
	assert.True(t, r.Retry())
	assert.True(t, IsRetryError(err))
}

func TestNoRetryError(t *testing.T) {
	base := fmt.Errorf("broken")
	err := NoRetryError(base)
	r, ok := err.(Retrier)
	require.True(t, ok)
	assert.False(t, r.Retry())
	assert.False(t, IsRetryError(err))
}

func TestFatalError(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := FatalError(base)
	assert.True(t, IsFatalError(err))
	assert.False(t, IsFatalError(base))
}

func TestCountError(t *testing.T) {
	base := fmt.Errorf("host down")
	err := CountError(3, base)
	c, ok := err.(Counter)
	require.True(t, ok)
	assert.Equal(t, 3, c.Count())
}
