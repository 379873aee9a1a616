package userauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/oauth-front/internal/crypto"
)

func TestStaticGateway(t *testing.T) {
	hash, err := crypto.HashSecret("s3cret")
	require.NoError(t, err)

	gateway := NewStaticGateway(map[string][]byte{"alice": hash})

	t.Run("correct password", func(t *testing.T) {
		result, err := gateway.Authenticate(context.Background(), Credentials{
			Username: "alice",
			Password: "s3cret",
		})
		require.NoError(t, err)
		assert.True(t, result.Authenticated)
	})

	t.Run("wrong password", func(t *testing.T) {
		result, err := gateway.Authenticate(context.Background(), Credentials{
			Username: "alice",
			Password: "not-it",
		})
		require.NoError(t, err)
		assert.False(t, result.Authenticated)
	})

	t.Run("unknown user", func(t *testing.T) {
		result, err := gateway.Authenticate(context.Background(), Credentials{
			Username: "mallory",
			Password: "s3cret",
		})
		require.NoError(t, err)
		assert.False(t, result.Authenticated)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := gateway.Authenticate(ctx, Credentials{
			Username: "alice",
			Password: "s3cret",
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
