package telemetry

import "time"

// DefaultHeartbeatInterval is the cadence of progress snapshots.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat signals when a progress snapshot is due. It is driven by the
// caller's loop and never fires on its own.
type Heartbeat struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// NewHeartbeat creates a heartbeat whose first beat is one interval from now.
func NewHeartbeat(interval time.Duration, now func() time.Time) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Heartbeat{interval: interval, now: now, last: now()}
}

// Due reports whether an interval has elapsed since the last beat and, if so,
// starts the next interval.
func (h *Heartbeat) Due() bool {
	t := h.now()
	if t.Sub(h.last) < h.interval {
		return false
	}
	h.last = t
	return true
}
