package fs

import (
	"context"

	"github.com/rclone/filerelay/fs/fserrors"
	"github.com/rclone/filerelay/lib/pacer"
)

// Pacer binds a lib/pacer.Pacer to a context so retries are classified
// with this package's ShouldRetry, matching rclone's fs.Pacer.
type Pacer struct {
	*pacer.Pacer
	ctx context.Context
}

// NewPacer creates a Pacer using calc to compute sleep times and the
// ConfigInfo carried on ctx for the retry count.
func NewPacer(ctx context.Context, calc pacer.Calculator) *Pacer {
	cfg := GetConfig(ctx)
	p := pacer.New(
		pacer.CalculatorOption(calc),
		pacer.RetriesOption(cfg.LowLevelRetries),
	)
	if cfg.MaxConnections > 0 {
		p.SetMaxConnections(cfg.MaxConnections)
	}
	return &Pacer{Pacer: p, ctx: ctx}
}

// Call paces fn, retrying while ShouldRetry says the returned error
// warrants it. Any error returned from fn is wrapped so it satisfies
// fserrors.Retrier, per fs/pacer_test.go's expectation that the final
// error from a Pacer.Call implements Retrier.
func (p *Pacer) Call(fn func() (bool, error)) error {
	err := p.Pacer.Call(func() (bool, error) {
		retry, err := fn()
		if err == nil {
			return false, nil
		}
		return retry || ShouldRetry(p.ctx, err), err
	})
	return wrapRetrier(p.ctx, err)
}

// CallNoRetry calls fn exactly once, still reporting the outcome through
// the same Retrier wrapping as Call.
func (p *Pacer) CallNoRetry(fn func() (bool, error)) error {
	err := p.Pacer.CallNoRetry(fn)
	return wrapRetrier(p.ctx, err)
}

func wrapRetrier(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(fserrors.Retrier); ok {
		return err
	}
	if ShouldRetry(ctx, err) {
		return fserrors.RetryError(err)
	}
	return fserrors.NoRetryError(err)
}
