package coordinator

import "time"

// Scheduler runs a function once after a delay. Scheduled functions cannot be
// cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(d time.Duration, f func())

// AfterFunc calls fn(d, f).
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) {
	fn(d, f)
}

// timerScheduler runs functions on their own goroutine via time.AfterFunc.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// ImmediateScheduler runs functions synchronously, ignoring the delay.
var ImmediateScheduler Scheduler = SchedulerFunc(func(_ time.Duration, f func()) { f() })
