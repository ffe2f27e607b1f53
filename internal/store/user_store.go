package store

import (
	"sync"

	"github.com/opsprep/user-api/internal/models"
)

// UserStoreProvider defines the interface for the user collection.
type UserStoreProvider interface {
	Len() int
	FindByID(id int) (models.User, bool)
	FindByEmail(email string) (models.User, bool)
	FindIndexByID(id int) (int, bool)
	List(offset, limit int) ([]models.User, int)
	Add(user models.User) models.User
	ReplaceAt(index int, user models.User) bool
	UpdateByID(id int, apply func(models.User) models.User) (models.User, bool)
	RemoveByID(id int) (models.User, bool)
}

// UserStore holds the in-memory, ordered user collection. The collection is
// entirely volatile: a process restart resets it to the seed fixtures.
//
// The original demo ran on a single-threaded event loop and needed no locking;
// under Go's concurrent HTTP handlers a single mutex restores the
// one-logical-writer-at-a-time invariant.
type UserStore struct {
	mu    sync.Mutex
	users []models.User
}

// NewUserStore returns a store seeded with the two fixture accounts.
func NewUserStore() *UserStore {
	return &UserStore{
		users: []models.User{
			{ID: 1, Name: "John Doe", Email: "john@example.com", Role: models.RoleAdmin},
			{ID: 2, Name: "Jane Smith", Email: "jane@example.com", Role: models.RoleUser},
		},
	}
}

// Len returns the current number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// FindByID returns the user with the given id, if present.
func (s *UserStore) FindByID(id int) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByID(id); i >= 0 {
		return s.users[i], true
	}
	return models.User{}, false
}

// FindByEmail returns the first user with the given email. Email uniqueness is
// not enforced, so duplicates shadow each other here.
func (s *UserStore) FindByEmail(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

// FindIndexByID returns the position of the user with the given id.
func (s *UserStore) FindIndexByID(id int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByID(id); i >= 0 {
		return i, true
	}
	return 0, false
}

// List returns a copy of the contiguous sub-sequence starting at offset, at
// most limit long, together with the total count at the time of the call.
func (s *UserStore) List(offset, limit int) ([]models.User, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.users)
	users := make([]models.User, 0, limit)
	if offset < 0 || offset >= total || limit <= 0 {
		return users, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	users = append(users, s.users[offset:end]...)
	return users, total
}

// Add appends user to the collection, assigning id = current count + 1 inside
// the critical section so concurrent creates cannot mint the same id.
//
// Ids are intentionally derived from the count rather than a monotonic
// counter: after a delete, a later create can collide with a surviving id.
// The original demo behaves this way and callers must tolerate it.
func (s *UserStore) Add(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = len(s.users) + 1
	s.users = append(s.users, user)
	return user
}

// ReplaceAt overwrites the record at the given position.
func (s *UserStore) ReplaceAt(index int, user models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.users) {
		return false
	}
	s.users[index] = user
	return true
}

// UpdateByID applies a mutation to the user with the given id in one critical
// section, so the lookup and the replace cannot interleave with a delete.
func (s *UserStore) UpdateByID(id int, apply func(models.User) models.User) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByID(id)
	if i < 0 {
		return models.User{}, false
	}
	s.users[i] = apply(s.users[i])
	return s.users[i], true
}

// RemoveByID filters the collection, producing a new one without the matching
// record. The removed user is returned.
func (s *UserStore) RemoveByID(id int) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByID(id)
	if i < 0 {
		return models.User{}, false
	}
	removed := s.users[i]
	filtered := make([]models.User, 0, len(s.users)-1)
	filtered = append(filtered, s.users[:i]...)
	filtered = append(filtered, s.users[i+1:]...)
	s.users = filtered
	return removed, true
}

// indexByID is the shared linear scan. Callers must hold s.mu.
func (s *UserStore) indexByID(id int) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
