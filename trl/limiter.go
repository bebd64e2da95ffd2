package trl

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate to give the engine's computed
// per-process share a live effect on a connection, instead of only
// updating the stored trl_per_process number.
type Limiter struct {
	limiter *rate.Limiter
}

// defaultBurst is the token-bucket burst used when the host carries no
// usable block size.
const defaultBurst = 64 * 1024

// NewLimiter builds a Limiter enforcing kibPerSec KiB/s, with a burst of
// one block so a single write call of up to one block size is never
// split. kibPerSec <= 0 means unlimited.
func NewLimiter(kibPerSec int64, blockSize int) *Limiter {
	if blockSize <= 0 {
		blockSize = defaultBurst
	}
	if kibPerSec <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, blockSize)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(kibPerSec*1024), blockSize)}
}

// WaitN blocks until n bytes are permitted to be transferred, or ctx is
// cancelled. Requests larger than the burst are drained one burst-sized
// chunk at a time, since the underlying token bucket rejects a single
// request above its burst outright.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	burst := l.limiter.Burst()
	if burst <= 0 {
		burst = defaultBurst
	}
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := l.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// SetLimit updates the enforced rate in place, used whenever
// Engine.CalcTRLPerProcess recomputes this host's share.
func (l *Limiter) SetLimit(kibPerSec int64) {
	if kibPerSec <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(kibPerSec * 1024))
}
