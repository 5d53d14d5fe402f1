package queuez

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// membership is the id -> Processor registry behind every queue. Dispatch reads a
// snapshot under the read lock; Add and Remove take the write lock, so a mutation
// never tears an in-flight fan-out.
type membership[T any] struct {
	byID     map[string]Processor[T]
	order    []string
	detached []Processor[T]
	mu       sync.RWMutex
}

func newMembership[T any]() membership[T] {
	return membership[T]{byID: make(map[string]Processor[T])}
}

// check validates p and reports whether this exact instance is already
// registered. A different instance under the same ID is ErrDuplicateID.
func (m *membership[T]) check(p Processor[T]) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("add nil processor: %w", ErrInvalidArgument)
	}
	id := p.ID()
	if id == "" {
		return false, fmt.Errorf("add processor with empty id: %w", ErrInvalidArgument)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registeredLocked(id, p)
}

func (m *membership[T]) registeredLocked(id string, p Processor[T]) (bool, error) {
	existing, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if existing == p {
		return true, nil
	}
	return false, fmt.Errorf("add %q: %w", id, ErrDuplicateID)
}

// add registers p. It reports false with no error when p is already registered.
func (m *membership[T]) add(p Processor[T]) (bool, error) {
	if _, err := m.check(p); err != nil {
		return false, err
	}
	id := p.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if registered, err := m.registeredLocked(id, p); registered || err != nil {
		return false, err
	}
	m.byID[id] = p
	m.order = append(m.order, id)
	m.detached = slices.DeleteFunc(m.detached, func(d Processor[T]) bool { return d == p })
	return true, nil
}

func (m *membership[T]) contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

func (m *membership[T]) remove(p Processor[T]) bool {
	if p == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := p.ID()
	if existing, ok := m.byID[id]; !ok || existing != p {
		// The ID may have been changed after registration; fall back to identity.
		id = ""
		for k, v := range m.byID {
			if v == p {
				id = k
				break
			}
		}
		if id == "" {
			return false
		}
	}
	m.detach(id)
	return true
}

func (m *membership[T]) removeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.order)
	for len(m.order) > 0 {
		m.detach(m.order[0])
	}
	return n
}

// detach must be called with mu held.
func (m *membership[T]) detach(id string) {
	p := m.byID[id]
	delete(m.byID, id)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == id })
	if !slices.Contains(m.detached, p) {
		m.detached = append(m.detached, p)
	}
}

func (m *membership[T]) get(id string) Processor[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

func (m *membership[T]) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// snapshot returns the current members in registration order.
func (m *membership[T]) snapshot() []Processor[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Processor[T], 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// everRegistered returns current members followed by detached processors.
func (m *membership[T]) everRegistered() []Processor[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Processor[T], 0, len(m.order)+len(m.detached))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return append(out, m.detached...)
}

// pruneDetached drops detached processors that are no longer running.
func (m *membership[T]) pruneDetached() {
	m.mu.Lock()
	m.detached = slices.DeleteFunc(m.detached, func(d Processor[T]) bool { return !d.IsRunning() })
	m.mu.Unlock()
}

func (m *membership[T]) forgetDetached() {
	m.mu.Lock()
	m.detached = nil
	m.mu.Unlock()
}

// queueBase carries everything the queue variants share: the lifecycle guard,
// membership, counters, and options. Variants supply Process and the hooks.
type queueBase[T any] struct {
	*Lifecycle
	members membership[T]
	opts    options
	stats   counters
	shut    atomic.Bool
}

func newQueueBase[T any](o options) *queueBase[T] {
	return &queueBase[T]{
		members: newMembership[T](),
		opts:    o,
	}
}

// Name returns the queue name.
func (q *queueBase[T]) Name() string {
	return q.opts.name
}

// Add registers p under its ID. If the queue is running and p is not, p is
// started first; a start failure leaves p unregistered. A rejected p is never
// left running by this call.
func (q *queueBase[T]) Add(p Processor[T]) error {
	if q.shut.Load() {
		return ErrShutdown
	}

	// Holding the read side keeps Start and Stop from interleaving with the
	// running check below.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if registered, err := q.members.check(p); registered || err != nil {
		return err
	}

	started := false
	if q.IsRunning() && !p.IsRunning() {
		if err := p.Start(); err != nil {
			return fmt.Errorf("start %q: %w", p.ID(), err)
		}
		started = true
	}
	added, err := q.members.add(p)
	if err != nil {
		// Lost a race with a concurrent Add of the same ID.
		if started {
			_ = p.Stop()
		}
		return err
	}
	if added {
		q.opts.log.Debug("member added", "member", p.ID(), "members", q.members.count())
	}
	return nil
}

// Remove detaches p from future dispatch without stopping it. Items already
// submitted to p still complete.
//
// The queue still stops p on its next Stop if p is running then. To move a
// running processor to another queue, stop this queue (or p) first.
func (q *queueBase[T]) Remove(p Processor[T]) {
	if q.members.remove(p) {
		q.opts.log.Debug("member removed", "member", p.ID(), "members", q.members.count())
	}
}

// RemoveAll detaches every member without stopping any of them.
func (q *queueBase[T]) RemoveAll() {
	if n := q.members.removeAll(); n > 0 {
		q.opts.log.Debug("members removed", "count", n)
	}
}

// Get returns the member registered under id, or nil.
func (q *queueBase[T]) Get(id string) Processor[T] {
	return q.members.get(id)
}

// Count returns the current membership size.
func (q *queueBase[T]) Count() int {
	return q.members.count()
}

// Stats returns a snapshot of the queue's counters.
func (q *queueBase[T]) Stats() Stats {
	return q.stats.snapshot(q.opts.name, q.members.count())
}

// startMembers starts every current member that is not running. On failure the
// members started by this call are stopped again.
func (q *queueBase[T]) startMembers() error {
	if q.shut.Load() {
		return ErrShutdown
	}

	var started []Processor[T]
	for _, p := range q.members.snapshot() {
		if p.IsRunning() {
			continue
		}
		if err := p.Start(); err != nil {
			for _, s := range started {
				_ = s.Stop()
			}
			return fmt.Errorf("start %q: %w", p.ID(), err)
		}
		started = append(started, p)
	}

	q.stats.startedAt.Store(q.opts.clock.Now())
	q.stats.stoppedAt.Store(time.Time{})
	q.opts.log.Debug("queue started", "members", q.members.count())
	return nil
}

// stopMembers stops every current member and every detached processor that is
// still running.
func (q *queueBase[T]) stopMembers() error {
	var errs []error
	for _, p := range q.members.everRegistered() {
		if !p.IsRunning() {
			continue
		}
		if err := p.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %q: %w", p.ID(), err))
		}
	}

	q.members.pruneDetached()

	q.stats.stoppedAt.Store(q.opts.clock.Now())
	q.opts.log.Debug("queue stopped", "members", q.members.count())
	return errors.Join(errs...)
}

func (q *queueBase[T]) dispatched() {
	q.stats.dispatched.Add(1)
	q.stats.lastDispatch.Store(q.opts.clock.Now())
	q.opts.metrics.ItemDispatched(q.opts.name)
}

func (q *queueBase[T]) failed(memberID string, item T, err error) error {
	q.stats.failed.Add(1)
	q.opts.metrics.MemberFailed(q.opts.name, memberID)
	return NewProcessError(item, err, memberID, q.opts.clock.Now())
}
