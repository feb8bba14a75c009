package hrrr

import "github.com/jonboulle/clockwork"

// clock is the package time source. Tests swap it via SetClock so
// LatestRun and event timestamps are deterministic.
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
