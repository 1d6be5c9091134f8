// Package session holds the current authenticated identity. The store
// is read by the directory and chat components but written only through
// the Controller, which belongs to the auth guard: a single writer,
// many readers.
package session

import (
	"sync"

	"github.com/dkim-dev/gochat-client/internal/types"
)

// Reader is the read-only view of the session handed to components
// that need identity but must not change it.
type Reader interface {
	// Current returns the authenticated user and whether one is set.
	Current() (types.User, bool)
}

type Store struct {
	mu            sync.RWMutex
	user          types.User
	authenticated bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Current() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user, s.authenticated
}

// Controller is the store's sole writer.
type Controller struct {
	store *Store
}

func NewController(store *Store) *Controller {
	return &Controller{store: store}
}

func (c *Controller) Set(user types.User) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.user = user
	c.store.authenticated = true
}

func (c *Controller) Clear() {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.user = types.User{}
	c.store.authenticated = false
}
