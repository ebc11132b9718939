package marchaux

import (
	"context"
	"errors"
	"time"
)

const (
	// TimeStep is the logical time added on every clock tick.
	TimeStep = 0.02
	// TimeWrap is the logical time at which the clock wraps back to zero.
	TimeWrap = 10000.0
	// TickPeriod is the nominal wall clock duration of a tick.
	TickPeriod = 20 * time.Millisecond

	wrapTicks = 500000 // TimeWrap / TimeStep
)

// Clock is the logical time accumulator fed to every pixel of a frame.
// Each tick adds [TimeStep] and the value wraps modulo [TimeWrap].
// The time is derived from an integer tick count so repeated advancing
// does not drift from direct modulo arithmetic. The zero value starts at time zero.
// Clock is not safe for concurrent use; it is owned by a single driving loop.
type Clock struct {
	ticks uint64
}

// Advance adds a tick to the clock and returns the new time.
func (c *Clock) Advance() float32 {
	c.ticks = (c.ticks + 1) % wrapTicks
	return c.Time()
}

// AdvanceN adds n ticks to the clock and returns the new time.
func (c *Clock) AdvanceN(n uint64) float32 {
	c.ticks = (c.ticks + n%wrapTicks) % wrapTicks
	return c.Time()
}

// Time returns the current logical time in [0, TimeWrap).
func (c *Clock) Time() float32 {
	return float32(float64(c.ticks) * TimeStep)
}

// Ticks returns the number of ticks since the last wrap.
func (c *Clock) Ticks() uint64 { return c.ticks }

// Reset sets the clock back to time zero.
func (c *Clock) Reset() { c.ticks = 0 }

// Run advances the clock once every period and calls fn with the new time
// until ctx is done or fn returns an error. A zero period uses [TickPeriod].
// Missed ticks are not made up for; correctness does not depend on cadence.
func (c *Clock) Run(ctx context.Context, period time.Duration, fn func(t float32) error) error {
	if fn == nil {
		return errors.New("nil clock callback")
	} else if period < 0 {
		return errors.New("negative tick period")
	} else if period == 0 {
		period = TickPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := fn(c.Advance())
			if err != nil {
				return err
			}
		}
	}
}
