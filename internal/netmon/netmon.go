// Package netmon exposes the device's connectivity as a single reactive
// boolean with edge-triggered change notification.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe reports whether the network currently looks reachable. A probe that
// cannot determine the state should return true: losing the signal must not
// block writes indefinitely, so the monitor fails open to online.
type Probe func(ctx context.Context) bool

// Listener is invoked on every state flip, never on repeated confirmations
// of the same state.
type Listener func(online bool)

// Monitor polls a probe and notifies subscribers on transitions. The zero
// state before the first probe is online (fail open).
type Monitor struct {
	probe    Probe
	interval time.Duration

	mu        sync.Mutex
	online    bool
	listeners []Listener
	cancel    context.CancelFunc
}

// New returns a monitor polling probe every interval. When probe is nil the
// monitor stays online until SetOnline is called.
func New(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{probe: probe, interval: interval, online: true}
}

// Online returns the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a listener for state flips. Listeners are invoked
// synchronously, in registration order, from the goroutine that observed
// the transition.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetOnline forces the state, notifying listeners only when it flips. Used
// by the watch loop and by tests; the poll loop goes through it too.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	slog.Debug("connectivity changed", "online", online)
	for _, l := range listeners {
		l(online)
	}
}

// Start begins polling until Stop is called. Safe to call once.
func (m *Monitor) Start() {
	if m.probe == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			m.SetOnline(m.probe(ctx))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts polling. The last observed state is retained.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
