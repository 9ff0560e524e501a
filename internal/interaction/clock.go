package interaction

import "time"

// Clock supplies the current time and cancellable delayed actions.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable delayed action.
type Timer interface {
	// Stop prevents the action from running. It reports whether the call
	// stopped the action (false if it already ran or was stopped).
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
