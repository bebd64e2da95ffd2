package fs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rclone/filerelay/fs/fserrors"
	"github.com/rclone/filerelay/lib/pacer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacerUsesConfigRetries(t *testing.T) {
	ctx, cfg := AddConfig(context.Background())
	cfg.LowLevelRetries = 7
	p := NewPacer(ctx, pacer.NewDefault(pacer.MinSleep(time.Millisecond)))
	assert.Equal(t, 7, p.Pacer.NumRetries())
}

func TestPacerCallWrapsErrorAsRetrier(t *testing.T) {
	ctx, cfg := AddConfig(context.Background())
	cfg.LowLevelRetries = 1
	p := NewPacer(ctx, pacer.NewDefault(pacer.MinSleep(time.Millisecond)))
	err := p.Call(func() (bool, error) {
		return false, fmt.Errorf("just broken")
	})
	require.Error(t, err)
	require.Implements(t, (*fserrors.Retrier)(nil), err)
	r := err.(fserrors.Retrier)
	assert.False(t, r.Retry())
}

func TestPacerCallRetriableWrapped(t *testing.T) {
	ctx, cfg := AddConfig(context.Background())
	cfg.LowLevelRetries = 1
	p := NewPacer(ctx, pacer.NewDefault(pacer.MinSleep(time.Millisecond)))
	err := p.Call(func() (bool, error) {
		return false, fmt.Errorf("use of closed network connection")
	})
	require.Error(t, err)
	r, ok := err.(fserrors.Retrier)
	require.True(t, ok)
	assert.True(t, r.Retry())
}
