package pacer

import (
	"time"
)

// Default is the default calculator used by New. It implements a decayed
// exponential backoff: successive errors increase the sleep time towards
// maxSleep, successive successes decay it back towards minSleep.
type Default struct {
	minSleep      time.Duration
	maxSleep      time.Duration
	decayConstant uint
	attackConstant uint
}

// DefaultOption configures a Default calculator
type DefaultOption interface {
	applyDefault(*Default)
}

type minSleepOption time.Duration

func (o minSleepOption) applyDefault(d *Default) { d.minSleep = time.Duration(o) }

// MinSleep sets the minimum sleep time for the Default calculator
func MinSleep(t time.Duration) DefaultOption { return minSleepOption(t) }

type maxSleepOption time.Duration

func (o maxSleepOption) applyDefault(d *Default) { d.maxSleep = time.Duration(o) }

// MaxSleep sets the maximum sleep time for the Default calculator
func MaxSleep(t time.Duration) DefaultOption { return maxSleepOption(t) }

type decayConstantOption uint

func (o decayConstantOption) applyDefault(d *Default) { d.decayConstant = uint(o) }

// DecayConstant sets the decay constant for the Default calculator
func DecayConstant(decay uint) DefaultOption { return decayConstantOption(decay) }

type attackConstantOption uint

func (o attackConstantOption) applyDefault(d *Default) { d.attackConstant = uint(o) }

// AttackConstant sets the attack constant for the Default calculator
func AttackConstant(attack uint) DefaultOption { return attackConstantOption(attack) }

// NewDefault creates a Default calculator with sensible defaults, which
// options may then override.
func NewDefault(opts ...DefaultOption) *Default {
	d := &Default{
		minSleep:       10 * time.Millisecond,
		maxSleep:       2 * time.Second,
		decayConstant:  2,
		attackConstant: 1,
	}
	for _, o := range opts {
		o.applyDefault(d)
	}
	return d
}

// Calculate implements Calculator.
func (d *Default) Calculate(state State) time.Duration {
	if state.ConsecutiveRetries == 0 {
		sleepTime := state.SleepTime >> d.decayConstant
		if sleepTime < d.minSleep {
			sleepTime = d.minSleep
		}
		return sleepTime
	}
	sleepTime := state.SleepTime << d.attackConstant
	if sleepTime > d.maxSleep {
		sleepTime = d.maxSleep
	}
	if sleepTime < d.minSleep {
		sleepTime = d.minSleep
	}
	return sleepTime
}

// Fixed is a calculator that always returns the same sleep interval
// between retries, used for connect loops that want a steady short
// backoff rather than an exponential one.
type Fixed struct {
	interval time.Duration
}

// NewFixed returns a Fixed calculator sleeping interval between retries.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{interval: interval}
}

// Calculate implements Calculator.
func (f *Fixed) Calculate(state State) time.Duration {
	if state.ConsecutiveRetries == 0 {
		return 0
	}
	return f.interval
}
