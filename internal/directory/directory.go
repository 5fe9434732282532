// Package directory is the user-directory collaborator: a keyed record store
// of marketplace users used for authentication and name/contact enrichment.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"harvestbid.org/internal/ids"
)

var (
	ErrNotFound      = errors.New("directory: user not found")
	ErrAlreadyExists = errors.New("directory: email already registered")
	ErrInvalidInput  = errors.New("directory: invalid input")
)

// User is a registered farmer or bidder.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Contact      string `json:"contact,omitempty"`
}

// Update carries editable profile fields. Nil fields are untouched.
type Update struct {
	Username *string
	Contact  *string
	Password *string // already hashed by the caller
}

// Store is the user directory repository.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, id string, upd Update) (User, error)
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *InMemory) CreateUser(ctx context.Context, u *User) error {
	if u == nil {
		return ErrInvalidInput
	}
	email := normalizeEmail(u.Email)
	if email == "" || strings.TrimSpace(u.Username) == "" || u.PasswordHash == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = email
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemory) UserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *InMemory) UserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.users[id], nil
}

func (s *InMemory) UpdateUser(ctx context.Context, id string, upd Update) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Username != nil && strings.TrimSpace(*upd.Username) != "" {
		u.Username = strings.TrimSpace(*upd.Username)
	}
	if upd.Contact != nil {
		u.Contact = strings.TrimSpace(*upd.Contact)
	}
	if upd.Password != nil && *upd.Password != "" {
		u.PasswordHash = *upd.Password
	}
	return *u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
