// Package connectivity tracks whether the score record store is reachable.
// A Monitor is created once per process and passed to its consumers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

// Transition is a change of connectivity state.
type Transition struct {
	Online bool
	At     time.Time
}

// Monitor holds the current online state and notifies subscribers of
// transitions. Set with an unchanged state is a no-op.
type Monitor struct {
	mu     sync.Mutex
	online bool
	now    func() time.Time
	subs   map[uint64]chan Transition
	next   uint64
}

// NewMonitor creates a monitor in the given initial state.
func NewMonitor(online bool) *Monitor {
	metrics.UpdateConnectivity(online)
	return &Monitor{
		online: online,
		now:    time.Now,
		subs:   make(map[uint64]chan Transition),
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the latest platform signal. Subscribers are notified only
// when the state changes. Reports whether it did.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	metrics.UpdateConnectivity(online)

	t := Transition{Online: online, At: m.now()}
	for _, ch := range m.subs {
		// keep only the newest transition for a slow subscriber
		select {
		case ch <- t:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- t:
		default:
		}
	}
	return true
}

// Subscribe returns a channel of transitions and a cancel func that closes it.
// A subscriber that falls behind sees the latest transition, not every one.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan Transition, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Checker probes reachability of the store.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Watch samples c every interval and mirrors the result into m until ctx
// ends. It probes once immediately.
func Watch(ctx context.Context, m *Monitor, c Checker, interval time.Duration) {
	log := logger.Get().Named("connectivity")
	probe := func() {
		err := c.Check(ctx)
		if ctx.Err() != nil {
			return
		}
		if m.Set(err == nil) {
			if err != nil {
				log.Warn(ctx, "store unreachable", logger.Error(err))
			} else {
				log.Info(ctx, "store reachable")
			}
		}
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
