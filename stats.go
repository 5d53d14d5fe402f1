package queuez

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of a queue's counters.
type Stats struct {
	// LastDispatch is when the queue last fanned an item out.
	LastDispatch time.Time
	// StartedAt is when the current or last run started.
	StartedAt time.Time
	// StoppedAt is when the last run stopped. Zero while the first run is live.
	StoppedAt time.Time
	// Name is the queue name.
	Name string
	// Members is the current membership size.
	Members int
	// Dispatched counts items fanned out to at least one member.
	Dispatched int64
	// Submitted counts per-member deliveries handed to the dispatch strategy.
	Submitted int64
	// Completed counts per-member deliveries that returned.
	Completed int64
	// Failed counts per-member deliveries that returned an error.
	Failed int64
	// Abandoned counts queued deliveries skipped by an immediate shutdown.
	Abandoned int64
	// InFlight counts submitted deliveries that have not completed yet.
	InFlight int64
}

// AtomicTime provides atomic operations for time.Time values.
// It internally stores time as Unix nanoseconds to avoid type assertions.
type AtomicTime struct {
	nanos atomic.Int64
}

// Store atomically stores a time value. Storing the zero time clears it.
func (at *AtomicTime) Store(t time.Time) {
	if t.IsZero() {
		at.nanos.Store(0)
		return
	}
	at.nanos.Store(t.UnixNano())
}

// Load atomically loads the time value.
func (at *AtomicTime) Load() time.Time {
	nanos := at.nanos.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// IsZero returns true if no time has been stored.
func (at *AtomicTime) IsZero() bool {
	return at.nanos.Load() == 0
}

// counters is the lock-free bookkeeping shared by every queue variant.
type counters struct {
	lastDispatch AtomicTime
	startedAt    AtomicTime
	stoppedAt    AtomicTime
	dispatched   atomic.Int64
	submitted    atomic.Int64
	completed    atomic.Int64
	failed       atomic.Int64
	abandoned    atomic.Int64
	inFlight     atomic.Int64
}

func (c *counters) snapshot(name string, members int) Stats {
	return Stats{
		Name:         name,
		Members:      members,
		Dispatched:   c.dispatched.Load(),
		Submitted:    c.submitted.Load(),
		Completed:    c.completed.Load(),
		Failed:       c.failed.Load(),
		Abandoned:    c.abandoned.Load(),
		InFlight:     c.inFlight.Load(),
		LastDispatch: c.lastDispatch.Load(),
		StartedAt:    c.startedAt.Load(),
		StoppedAt:    c.stoppedAt.Load(),
	}
}

// merge adds the counters of o to s, keeping the later timestamps.
func (s Stats) merge(o Stats) Stats {
	s.Members += o.Members
	s.Dispatched += o.Dispatched
	s.Submitted += o.Submitted
	s.Completed += o.Completed
	s.Failed += o.Failed
	s.Abandoned += o.Abandoned
	s.InFlight += o.InFlight
	if o.LastDispatch.After(s.LastDispatch) {
		s.LastDispatch = o.LastDispatch
	}
	return s
}
