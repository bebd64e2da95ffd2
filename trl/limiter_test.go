package trl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterUnlimitedWhenNonPositive(t *testing.T) {
	l := NewLimiter(0, 1024)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.WaitN(ctx, 1<<20))
}

func TestLimiterSetLimitUpdatesRate(t *testing.T) {
	l := NewLimiter(1, 1) // 1 KiB/s, burst of 1 byte
	l.SetLimit(1 << 20)   // raise to 1 MiB/s so a burst of a few KB doesn't block
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.WaitN(ctx, 1024))
}
