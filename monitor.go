package queuez

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/queuez/internal/logging"
)

// QueueStats is one Monitor report: the queue's snapshot plus what changed since
// the previous report.
type QueueStats struct {
	// LastUpdate is the timestamp of this report.
	LastUpdate time.Time
	// Stats is the snapshot taken for this report.
	Stats Stats
	// Dispatched is the number of items dispatched since the last report.
	Dispatched int64
	// Completed is the number of deliveries completed since the last report.
	Completed int64
	// Rate is dispatched items per second since the last report.
	Rate float64
}

// Monitor polls a queue's Stats on an interval and reports throughput.
// It never touches the items themselves, so it can watch any queue.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Monitor struct {
	source   StatsSource
	onStats  func(QueueStats)
	clock    Clock
	interval time.Duration

	mu     sync.Mutex
	last   Stats
	lastAt time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor for source. A nil clock uses the real clock.
//
// When to use:
//   - Tracking throughput of a long-running queue
//   - Spotting a pool that falls behind (InFlight keeps growing)
//   - Feeding dashboards without wiring Prometheus
//
// Example:
//
//	m := queuez.NewMonitor(q, time.Second, nil, func(s queuez.QueueStats) {
//		log.Printf("%s: %.1f items/sec, %d in flight", s.Stats.Name, s.Rate, s.Stats.InFlight)
//	})
//	m.Start(ctx)
//	defer m.Stop()
func NewMonitor(source StatsSource, interval time.Duration, clock Clock, onStats func(QueueStats)) *Monitor {
	if clock == nil {
		clock = RealClock
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		source:   source,
		onStats:  onStats,
		clock:    clock,
		interval: interval,
	}
}

// Start begins polling in the background until ctx is done or Stop is called.
// Starting a started monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.last = m.source.Stats()
	m.lastAt = m.clock.Now()

	// Created before returning so advances right after Start are seen.
	ticker := m.clock.NewTicker(m.interval)
	go m.run(ctx, ticker, m.done)
}

func (m *Monitor) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.Report()
		}
	}
}

// Stop ends polling and emits a final report.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	m.Report()
}

// Report takes a snapshot now, delivers it to the callback, and returns it.
func (m *Monitor) Report() QueueStats {
	m.mu.Lock()
	now := m.clock.Now()
	cur := m.source.Stats()
	report := QueueStats{
		LastUpdate: now,
		Stats:      cur,
		Dispatched: cur.Dispatched - m.last.Dispatched,
		Completed:  cur.Completed - m.last.Completed,
	}
	if !m.lastAt.IsZero() {
		if secs := now.Sub(m.lastAt).Seconds(); secs > 0 {
			report.Rate = float64(report.Dispatched) / secs
		}
	}
	m.last = cur
	m.lastAt = now
	m.mu.Unlock()

	if logging.IsDebugEnabled() {
		logging.Component("monitor").Debug("queue stats",
			"queue", cur.Name,
			"dispatched", report.Dispatched,
			"rate", report.Rate,
			"in_flight", cur.InFlight,
		)
	}
	if m.onStats != nil {
		m.onStats(report)
	}
	return report
}
