package expreval

import "time"

// Clock supplies the evaluator's notion of "now". Injected so concurrent
// evaluations with different overrides cannot interfere through shared state.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// overrideClock pins the clock to a fixed instant. A date-only override
// (midnight) makes today() that date and now() midnight of it; an override
// carrying a time component is used as-is.
type overrideClock struct {
	at time.Time
}

func (c overrideClock) Now() time.Time { return c.at }
