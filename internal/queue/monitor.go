package queue

import (
	"context"
	"sync"
	"time"
)

// rateWindow is how far back the rolling request-rate window reaches.
const rateWindow = 60 * time.Second

// Monitor records timestamps of remote calls for a rolling requests-per-
// minute display. Purely observational: it never influences scheduling,
// which uses a fixed inter-request delay instead.
type Monitor struct {
	mu     sync.Mutex
	stamps []time.Time
	total  int
	now    func() time.Time
}

// NewMonitor creates a monitor using the wall clock.
func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// Track appends the current timestamp and bumps the session total.
func (m *Monitor) Track() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamps = append(m.stamps, m.now())
	m.total++
}

// Rate returns the number of calls within the last minute.
func (m *Monitor) Rate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return len(m.stamps)
}

// Total returns the number of calls tracked this session.
func (m *Monitor) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Start prunes stale entries on a 1-second cadence until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			m.prune()
			m.mu.Unlock()
		}
	}
}

// prune drops entries older than the window. Caller holds mu.
func (m *Monitor) prune() {
	cutoff := m.now().Add(-rateWindow)
	i := 0
	for i < len(m.stamps) && m.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.stamps = append(m.stamps[:0], m.stamps[i:]...)
	}
}
