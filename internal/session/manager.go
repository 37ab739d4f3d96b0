// Package session keeps one interaction controller per browser tab.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/parcelmap/internal/interaction"
	"github.com/woozymasta/parcelmap/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Factory builds the controller of a new session.
type Factory func(id string) *interaction.Controller

// Manager owns the live sessions. Sessions idle for longer than the TTL
// are dropped; nothing outlives the process.
type Manager struct {
	sessions map[string]*entry
	factory  Factory
	now      func() time.Time
	ttl      time.Duration
	mu       sync.Mutex
}

type entry struct {
	lastSeen time.Time
	ctrl     *interaction.Controller
}

// NewManager creates an empty session manager.
func NewManager(ttl time.Duration, factory Factory) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Manager{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
		ttl:      ttl,
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create() (string, *interaction.Controller) {
	id := uuid.NewString()
	ctrl := m.factory(id)

	m.mu.Lock()
	m.sessions[id] = &entry{ctrl: ctrl, lastSeen: m.now()}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	log.Debug().Str("session", id).Int("active", n).Msg("Session created")

	return id, ctrl
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*interaction.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.lastSeen) > m.ttl {
		delete(m.sessions, id)
		metrics.SessionsActive.Set(float64(len(m.sessions)))
		return nil, false
	}

	e.lastSeen = m.now()
	return e.ctrl, true
}

// Sweep drops idle sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}

	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return removed
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Int("active", m.Len()).Msg("Idle sessions removed")
			}
		}
	}
}
