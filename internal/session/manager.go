package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightdeck/insightdeck/config"
)

// ErrNotFound indicates an unknown or expired session ID.
var ErrNotFound = errors.New("session: not found")

// Gate coordinates capacity for open sessions (backed by runtime.Controller).
type Gate interface {
	AcquireSession(ctx context.Context) error
	ReleaseSession()
}

// Manager provides lifecycle hooks for creating and dropping sessions and a
// TTL-bearing session cache.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         Gate
	stopCh       chan struct{}
	cleanupWG    sync.WaitGroup
}

// NewManager constructs a lifecycle manager with a TTL-bearing session cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config. Gate can be nil
// for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate Gate, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultSessionIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultSessionCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired sessions.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all sessions.
func (m *Manager) Close(ctx context.Context) error {
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		delete(m.sessions, id)
		m.release()
	}
	return nil
}

// Create registers a new empty session and returns it. The manager enforces
// open-session capacity via the gate when provided.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	now := m.clock()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		expiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	s.touch(m.clock().Add(m.ttl))
	return s, true
}

// Remove drops a session by ID, releasing capacity via the gate.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.release()
	return nil
}

// EvictExpired scans for expired sessions and drops them.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expired []string

	m.mu.RLock()
	for id, s := range m.sessions {
		if s.expired(now) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.mu.Lock()
		_, ok := m.sessions[id]
		if ok {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		if ok {
			m.release()
		}
	}
}

// Count returns the current number of cached sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireSession(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseSession()
}
