package queuez

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Lifecycle is the shared start/stop guard behind every Processor in this package.
// Embed a *Lifecycle and run each item's work through Guard to get the full
// Processor contract except Process itself.
//
// Guard holds the read side of an RWMutex while Start and Stop hold the write side,
// so many items may be processed concurrently but the running flag never flips while
// one is mid-computation. The state itself lives in an atomic so IsRunning never
// blocks.
type Lifecycle struct {
	onStart func() error
	onStop  func() error
	id      atomic.Pointer[string]
	mu      sync.RWMutex
	state   atomic.Int32
}

// NewLifecycle creates a guard in the Created state. An empty id is replaced by
// kind-<uuid>. Either hook may be nil.
func NewLifecycle(kind, id string, onStart, onStop func() error) *Lifecycle {
	l := &Lifecycle{onStart: onStart, onStop: onStop}
	l.SetID(defaultID(kind, id))
	return l
}

func defaultID(kind, id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	if kind == "" {
		kind = "processor"
	}
	return kind + "-" + uuid.NewString()
}

// ID returns the processor ID.
func (l *Lifecycle) ID() string {
	if p := l.id.Load(); p != nil {
		return *p
	}
	return ""
}

// SetID assigns the processor ID. Change it only while the processor is not
// registered with a queue.
func (l *Lifecycle) SetID(id string) {
	l.id.Store(&id)
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// IsRunning is a non-blocking snapshot of the running flag.
func (l *Lifecycle) IsRunning() bool {
	return l.State() == StateRunning
}

// Start moves Created or Stopped to Running, running the start hook first.
// A failing hook leaves the state unchanged.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() == StateRunning {
		return nil
	}
	if l.onStart != nil {
		if err := l.onStart(); err != nil {
			return err
		}
	}
	l.state.Store(int32(StateRunning))
	return nil
}

// Stop moves Running to Stopped once no Guard call is in flight. The stop hook
// runs under the write lock; its error is returned but the transition still happens.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case StateStopped:
		return nil
	case StateCreated:
		return newStateError("stop", l.ID(), StateCreated)
	}

	var err error
	if l.onStop != nil {
		err = l.onStop()
	}
	l.state.Store(int32(StateStopped))
	return err
}

// Guard runs fn as one item's work, failing with ErrInvalidState unless running.
func (l *Lifecycle) Guard(fn func() (bool, error)) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s := l.State(); s != StateRunning {
		return false, newStateError("process", l.ID(), s)
	}
	return fn()
}

// Stopped runs fn while holding the read side, failing with ErrInvalidState unless
// stopped. Results are read through it so they are never observed mid-run.
func (l *Lifecycle) Stopped(op string, fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s := l.State(); s != StateStopped {
		return newStateError(op, l.ID(), s)
	}
	fn()
	return nil
}

// stopRunning is Stop for shutdown paths: it only acts on a running processor and
// is a no-op in every other state.
func (l *Lifecycle) stopRunning() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() != StateRunning {
		return nil
	}
	var err error
	if l.onStop != nil {
		err = l.onStop()
	}
	l.state.Store(int32(StateStopped))
	return err
}
