package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(state string, ttl time.Duration) *oauth.PendingAuthorization {
	now := time.Now()
	return &oauth.PendingAuthorization{
		State:       state,
		ClientID:    "client-1",
		GrantType:   oauth.GrantTypeCode,
		RedirectURI: "http://localhost:3000/cb",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestMemoryStorage_Clients(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	t.Run("unknown client is a fosite.ErrNotFound", func(t *testing.T) {
		_, err := s.GetClient(ctx, "missing")
		assert.ErrorIs(t, err, fosite.ErrNotFound)
	})

	t.Run("registered client round-trips", func(t *testing.T) {
		require.NoError(t, s.PutClient(ctx, &Client{
			ID:           "client-1",
			Type:         ClientTypeConfidential,
			RedirectURIs: []string{"http://localhost:3000/cb"},
			GrantTypes:   []string{"code", "token"},
			Scopes:       []string{"read", "write"},
		}))

		client, err := s.GetClient(ctx, "client-1")
		require.NoError(t, err)
		assert.Equal(t, "client-1", client.GetID())
		assert.False(t, client.IsPublic())
		assert.True(t, client.GetResponseTypes().Has("code"))
		assert.True(t, client.GetResponseTypes().Has("token"))
		assert.True(t, client.GetScopes().Has("read"))
		assert.Equal(t, []string{"http://localhost:3000/cb"}, client.GetRedirectURIs())
	})

	t.Run("grant type wire values map to fosite grant types", func(t *testing.T) {
		client, err := s.GetClient(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, client.GetGrantTypes().Has("authorization_code"))
		assert.True(t, client.GetGrantTypes().Has("implicit"))
	})
}

func TestMemoryStorage_PendingAuthorizations(t *testing.T) {
	ctx := context.Background()

	t.Run("take removes on read", func(t *testing.T) {
		s := NewMemoryStorage()
		require.NoError(t, s.PutPendingAuthorization(ctx, newPending("state-1", time.Minute)))

		pending, found, err := s.TakePendingAuthorization(ctx, "state-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "state-1", pending.State)

		_, found, err = s.TakePendingAuthorization(ctx, "state-1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("unknown state is a plain miss", func(t *testing.T) {
		s := NewMemoryStorage()
		_, found, err := s.TakePendingAuthorization(ctx, "never-stored")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("expired record is a miss", func(t *testing.T) {
		s := NewMemoryStorage()
		require.NoError(t, s.PutPendingAuthorization(ctx, newPending("state-1", -time.Minute)))

		_, found, err := s.TakePendingAuthorization(ctx, "state-1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("colliding state overwrites the prior entry", func(t *testing.T) {
		s := NewMemoryStorage()
		first := newPending("state-1", time.Minute)
		first.ClientID = "client-a"
		second := newPending("state-1", time.Minute)
		second.ClientID = "client-b"

		require.NoError(t, s.PutPendingAuthorization(ctx, first))
		require.NoError(t, s.PutPendingAuthorization(ctx, second))

		pending, found, err := s.TakePendingAuthorization(ctx, "state-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "client-b", pending.ClientID)
	})

	t.Run("concurrent takes have exactly one winner", func(t *testing.T) {
		s := NewMemoryStorage()
		require.NoError(t, s.PutPendingAuthorization(ctx, newPending("state-1", time.Minute)))

		const goroutines = 32
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, found, _ := s.TakePendingAuthorization(ctx, "state-1"); found {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStorage_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.PutPendingAuthorization(ctx, newPending("live", time.Minute)))
	require.NoError(t, s.PutPendingAuthorization(ctx, newPending("dead", -time.Minute)))
	require.NoError(t, s.PutGrant(ctx, &oauth.Grant{
		Code:      "dead-code",
		ClientID:  "client-1",
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, s.PutGrant(ctx, &oauth.Grant{
		Code:      "live-code",
		ClientID:  "client-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := s.TakePendingAuthorization(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)
}
