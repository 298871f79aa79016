package eventloop

import "time"

// Clock abstracts time so timers can be driven deterministically in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a pending clock callback.
type Stopper interface {
	// Stop prevents the callback from firing.
	// Returns false if it already fired or was stopped.
	Stop() bool
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
