package scheduler

import "time"

// Clock supplies the current time to the engine.  Deadlines
// (can_cancel_until) are computed from it, so tests inject a manual
// clock to pin approvals and cancellations to exact instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock { return systemClock{} }
