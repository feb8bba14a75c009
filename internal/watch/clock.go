package watch

import "github.com/jonboulle/clockwork"

// clock is the package time source. Tests swap it via SetClock to
// drive poll ticks deterministically.
var clock = clockwork.NewRealClock()

// SetClock replaces the package time source. Passing nil restores the
// real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
