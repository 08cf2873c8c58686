// Package memstore provides in-memory domain repositories for tests and
// STORAGE_DRIVER=memory.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/shadow-crest/domain"
)

type table[K comparable, V any] struct {
	mu   sync.RWMutex
	rows map[K]V
}

func newTable[K comparable, V any]() *table[K, V] {
	return &table[K, V]{rows: make(map[K]V)}
}

func (t *table[K, V]) get(id K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[K, V]) put(id K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = v
}

func (t *table[K, V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// stamp keeps the stored CreatedAt on re-save.
func stamp(createdAt, updatedAt *time.Time, previous time.Time, found bool) {
	now := time.Now().UTC()
	switch {
	case found && !previous.IsZero():
		*createdAt = previous
	case createdAt.IsZero():
		*createdAt = now
	}
	*updatedAt = now
}

// Characters implements domain.CharacterRepository.
type Characters struct{ t *table[int64, domain.Character] }

func (r *Characters) GetByID(_ context.Context, id int64) (*domain.Character, error) {
	c, ok := r.t.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *Characters) Save(_ context.Context, c *domain.Character) (*domain.Character, error) {
	if c.ID == 0 {
		return nil, errors.New("character id cannot be empty")
	}
	prev, found := r.t.get(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt, prev.CreatedAt, found)
	r.t.put(c.ID, *c)
	out := *c
	return &out, nil
}

// Len returns the number of stored characters.
func (r *Characters) Len() int { return r.t.len() }

// Corporations implements domain.CorporationRepository.
type Corporations struct{ t *table[int64, domain.Corporation] }

func (r *Corporations) GetByID(_ context.Context, id int64) (*domain.Corporation, error) {
	c, ok := r.t.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *Corporations) Save(_ context.Context, c *domain.Corporation) (*domain.Corporation, error) {
	if c.ID == 0 {
		return nil, errors.New("corporation id cannot be empty")
	}
	prev, found := r.t.get(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt, prev.CreatedAt, found)
	r.t.put(c.ID, *c)
	out := *c
	return &out, nil
}

// Len returns the number of stored corporations.
func (r *Corporations) Len() int { return r.t.len() }

// Alliances implements domain.AllianceRepository.
type Alliances struct{ t *table[int64, domain.Alliance] }

func (r *Alliances) GetByID(_ context.Context, id int64) (*domain.Alliance, error) {
	a, ok := r.t.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *Alliances) Save(_ context.Context, a *domain.Alliance) (*domain.Alliance, error) {
	if a.ID == 0 {
		return nil, errors.New("alliance id cannot be empty")
	}
	prev, found := r.t.get(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt, prev.CreatedAt, found)
	r.t.put(a.ID, *a)
	out := *a
	return &out, nil
}

// Len returns the number of stored alliances.
func (r *Alliances) Len() int { return r.t.len() }

// Users implements domain.UserRepository.
type Users struct{ t *table[string, domain.User] }

func (r *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.t.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *Users) Create(_ context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, exists := r.t.get(u.ID); exists {
		return errors.New("user with this ID already exists")
	}
	stamp(&u.CreatedAt, &u.UpdatedAt, time.Time{}, false)
	r.t.put(u.ID, *u)
	return nil
}

// Len returns the number of stored users.
func (r *Users) Len() int { return r.t.len() }

// UserCharacters implements domain.UserCharacterRepository.
type UserCharacters struct{ t *table[int64, domain.UserCharacter] }

func (r *UserCharacters) GetByCharacterID(_ context.Context, characterID int64) (*domain.UserCharacter, error) {
	l, ok := r.t.get(characterID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (r *UserCharacters) Save(_ context.Context, l *domain.UserCharacter) error {
	if l.CharacterID == 0 || l.UserID == "" {
		return errors.New("user character link needs both ids")
	}
	prev, found := r.t.get(l.CharacterID)
	stamp(&l.CreatedAt, &l.UpdatedAt, prev.CreatedAt, found)
	r.t.put(l.CharacterID, *l)
	return nil
}

// Store holds one of each repository.
type Store struct {
	Characters     *Characters
	Corporations   *Corporations
	Alliances      *Alliances
	Users          *Users
	UserCharacters *UserCharacters
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		Characters:     &Characters{t: newTable[int64, domain.Character]()},
		Corporations:   &Corporations{t: newTable[int64, domain.Corporation]()},
		Alliances:      &Alliances{t: newTable[int64, domain.Alliance]()},
		Users:          &Users{t: newTable[string, domain.User]()},
		UserCharacters: &UserCharacters{t: newTable[int64, domain.UserCharacter]()},
	}
}

// Repositories exposes the store through the domain interfaces.
func (s *Store) Repositories() *domain.Repositories {
	return &domain.Repositories{
		Characters:     s.Characters,
		Corporations:   s.Corporations,
		Alliances:      s.Alliances,
		Users:          s.Users,
		UserCharacters: s.UserCharacters,
	}
}
