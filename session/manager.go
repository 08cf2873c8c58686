package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/shadow-crest/cache"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "SESSION.%s"

// Manager loads and persists sessions in a cache.Store (memory or redis).
type Manager struct {
	store cache.Store
	ttl   time.Duration
	newID func() string
}

// NewManager creates a Manager. A non-positive ttl uses DefaultTTL.
func NewManager(store cache.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, newID: uuid.NewString}
}

func key(id string) string {
	return fmt.Sprintf(keyPrefix, id)
}

// Load returns the session for id. An empty, unknown or expired id yields a fresh
// session with a new id.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return New(m.newID()), nil
	}
	raw, err := m.store.Get(ctx, key(id))
	if errors.Is(err, cache.ErrNotFound) {
		return New(m.newID()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	s := New(id)
	if err := json.Unmarshal(raw, s); err != nil {
		// corrupt entries are replaced
		return New(m.newID()), nil
	}
	return s, nil
}

// Save persists s and renews its ttl.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Set(ctx, key(s.ID()), raw, m.ttl); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Rotate moves s to a fresh id and drops the entry under the old one, so an id
// handed out before login is worthless afterwards. The caller saves s.
func (m *Manager) Rotate(ctx context.Context, s *Session) error {
	s.mu.Lock()
	old := s.id
	s.id = m.newID()
	s.renew = false
	s.dirty = true
	s.mu.Unlock()

	if err := m.store.Delete(ctx, key(old)); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("dropping session %s: %w", old, err)
	}
	return nil
}

// Destroy removes the session.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	return m.store.Delete(ctx, key(id))
}

// TTL is the lifetime applied on Save.
func (m *Manager) TTL() time.Duration { return m.ttl }
