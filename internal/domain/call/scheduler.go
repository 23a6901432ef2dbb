package call

import "time"

// Scheduler abstracts delayed execution so polling chains and phase
// delays can be driven deterministically in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a scheduled function.
type Timer interface {
	Stop() bool
}

type realScheduler struct{}

// NewScheduler returns a wall-clock Scheduler.
func NewScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
