// Package pacer implements a pacing and retrying mechanism used to stop
// protocol adapters overwhelming remote hosts and to bound the number of
// simultaneously open connections per host.
package pacer

import (
	"sync"
	"time"
)

// State carries the current sleep time and retry counter between calls to
// a Calculator.
type State struct {
	SleepTime          time.Duration // current sleep time
	ConsecutiveRetries int           // number of retries in a row
	LastError          error         // the error from the last call
}

// Calculator decides how long to sleep before the next call
type Calculator interface {
	Calculate(state State) time.Duration
}

// Paced is a function which is called by the pacer to decide whether
// to retry the operation. It should return a boolean as to whether
// to retry and an error for the call.
type Paced func() (bool, error)

// Pacer paces calls against a host, retrying them with backoff when the
// Paced function requests it and limiting the number of calls which can
// be in flight at once.
type Pacer struct {
	mu             sync.Mutex
	pacer          chan struct{}
	connTokens     chan struct{}
	retries        int
	maxConnections int
	calculator     Calculator
	state          State
}

// Option is the interface implemented by all options for New
type Option interface {
	applyPacer(*Pacer)
}

type retriesOption int

func (o retriesOption) applyPacer(p *Pacer) { p.retries = int(o) }

// RetriesOption sets the max number of retries for Pacer
func RetriesOption(retries int) Option { return retriesOption(retries) }

type maxConnectionsOption int

func (o maxConnectionsOption) applyPacer(p *Pacer) { p.SetMaxConnections(int(o)) }

// MaxConnectionsOption sets the maximum number of concurrent connections
func MaxConnectionsOption(n int) Option { return maxConnectionsOption(n) }

type calculatorOption struct{ c Calculator }

func (o calculatorOption) applyPacer(p *Pacer) { p.calculator = o.c }

// CalculatorOption sets the Calculator used to compute sleep times
func CalculatorOption(c Calculator) Option { return calculatorOption{c} }

// New creates a Pacer with default settings, configurable with Option values
func New(opts ...Option) *Pacer {
	p := &Pacer{
		pacer:          make(chan struct{}, 1),
		retries:        3,
		calculator:     NewDefault(),
		maxConnections: 0,
	}
	for _, o := range opts {
		o.applyPacer(p)
	}
	p.state.SleepTime = p.minSleep()
	p.pacer <- struct{}{}
	return p
}

func (p *Pacer) minSleep() time.Duration {
	if d, ok := p.calculator.(*Default); ok {
		return d.minSleep
	}
	return 0
}

// SetMaxConnections sets the maximum number of concurrent connections.
// Setting it to 0 disables the limit.
func (p *Pacer) SetMaxConnections(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxConnections = n
	if n > 0 {
		p.connTokens = make(chan struct{}, n)
		for i := 0; i < n; i++ {
			p.connTokens <- struct{}{}
		}
	} else {
		p.connTokens = nil
	}
}

// SetRetries sets the max number of retries for Call
func (p *Pacer) SetRetries(retries int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = retries
}

// NumRetries returns the current max number of retries for Call
func (p *Pacer) NumRetries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retries
}

// beginCall waits for a connection token (if limited) then waits its turn
// at the pacer gate.
func (p *Pacer) beginCall() {
	if p.connTokens != nil {
		<-p.connTokens
	}
	<-p.pacer
	p.mu.Lock()
	sleepTime := p.state.SleepTime
	p.mu.Unlock()
	if sleepTime > 0 {
		time.Sleep(sleepTime)
	}
}

// endCall returns the connection token and reschedules the pacer gate
// according to whether the call is to be retried.
func (p *Pacer) endCall(retry bool, err error) {
	p.mu.Lock()
	if retry {
		p.state.ConsecutiveRetries++
	} else {
		p.state.ConsecutiveRetries = 0
	}
	p.state.LastError = err
	p.state.SleepTime = p.calculator.Calculate(p.state)
	p.mu.Unlock()
	go func() {
		p.pacer <- struct{}{}
	}()
	if p.connTokens != nil {
		p.connTokens <- struct{}{}
	}
}

// call runs fn up to maxRetries times, retrying while fn asks for it.
func (p *Pacer) call(fn Paced, maxRetries int) (err error) {
	var retry bool
	for i := 0; i < maxRetries; i++ {
		p.beginCall()
		retry, err = fn()
		p.endCall(retry, err)
		if !retry {
			return err
		}
	}
	return err
}

// Call paces and retries fn according to the pacer's retry count
func (p *Pacer) Call(fn Paced) error {
	p.mu.Lock()
	retries := p.retries
	p.mu.Unlock()
	return p.call(fn, retries)
}

// CallNoRetry calls fn exactly once, still honouring pacing
func (p *Pacer) CallNoRetry(fn Paced) error {
	return p.call(fn, 1)
}
