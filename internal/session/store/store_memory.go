package store

import (
	"context"
	"sync"
	"time"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

type memoryEntry struct {
	state     models.State
	expiresAt time.Time
}

// InMemoryStore keeps session state in process memory. Suitable for a single
// gateway instance and for tests; use RedisStore when running several.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.BrowserSessionID]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemory(ttl time.Duration, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[id.BrowserSessionID]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Load(_ context.Context, sid id.BrowserSessionID) (models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sid]
	if !ok || s.expired(entry) {
		return models.State{}, sentinel.ErrNotFound
	}
	return entry.state, nil
}

// Save stores state if the stored version still equals expectedVersion
// (0 for "no state yet") and returns it with the bumped version.
func (s *InMemoryStore) Save(_ context.Context, sid id.BrowserSessionID, state models.State, expectedVersion uint64) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	if entry, ok := s.sessions[sid]; ok && !s.expired(entry) {
		current = entry.state.Version
	}
	if current != expectedVersion {
		return models.State{}, sentinel.ErrConflict
	}

	state.Version = expectedVersion + 1
	s.sessions[sid] = memoryEntry{state: state, expiresAt: s.now().Add(s.ttl)}
	return state, nil
}

// Touch restarts the expiry window of a live session without changing its
// version.
func (s *InMemoryStore) Touch(_ context.Context, sid id.BrowserSessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sid]
	if !ok || s.expired(entry) {
		return sentinel.ErrNotFound
	}
	entry.expiresAt = s.now().Add(s.ttl)
	s.sessions[sid] = entry
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sid id.BrowserSessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

// Sweep drops expired entries and reports how many were removed.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sid, entry := range s.sessions {
		if s.expired(entry) {
			delete(s.sessions, sid)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *InMemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *InMemoryStore) expired(entry memoryEntry) bool {
	return s.ttl > 0 && !s.now().Before(entry.expiresAt)
}
