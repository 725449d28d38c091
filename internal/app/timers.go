package app

import "time"

// Timer is a pending countdown that can be cancelled.
type Timer interface {
	Stop() bool
}

// Timers schedules countdown callbacks. Tests swap in a manual implementation.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realTimers struct{}

func (realTimers) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// fence identifies the question a timer was armed for. A callback only acts
// when the live session still carries the same fence.
type fence struct {
	sessionID string
	index     int
}
