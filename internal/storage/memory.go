package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/ory/fosite"
)

// Ensure MemoryStorage implements the storage interface
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps all records in process memory. The default backend for
// development and tests; nothing survives a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	clients map[string]*Client
	pending map[string]*oauth.PendingAuthorization
	grants  map[string]*oauth.Grant
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients: make(map[string]*Client),
		pending: make(map[string]*oauth.PendingAuthorization),
		grants:  make(map[string]*oauth.Grant),
	}
}

func (s *MemoryStorage) GetClient(_ context.Context, id string) (fosite.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return client.ToFositeClient(), nil
}

func (s *MemoryStorage) PutClient(_ context.Context, client *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[client.ID] = client
	return nil
}

// PutPendingAuthorization stores an in-flight authorization keyed by state.
// A colliding state silently overwrites the prior entry; state keys are
// single-use and short-lived.
func (s *MemoryStorage) PutPendingAuthorization(_ context.Context, pending *oauth.PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[pending.State] = pending
	return nil
}

// TakePendingAuthorization removes and returns the pending record for the
// state. Unknown, already-consumed, and expired states are all a plain miss.
func (s *MemoryStorage) TakePendingAuthorization(_ context.Context, state string) (*oauth.PendingAuthorization, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[state]
	if !ok {
		return nil, false, nil
	}
	delete(s.pending, state)

	if pending.Expired(time.Now()) {
		return nil, false, nil
	}
	return pending, true, nil
}

func (s *MemoryStorage) PutGrant(_ context.Context, grant *oauth.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[grant.Code] = grant
	return nil
}

func (s *MemoryStorage) CleanupExpired(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, pending := range s.pending {
		if pending.Expired(now) {
			delete(s.pending, state)
			removed++
		}
	}
	for code, grant := range s.grants {
		if now.After(grant.ExpiresAt) {
			delete(s.grants, code)
			removed++
		}
	}
	return removed, nil
}
