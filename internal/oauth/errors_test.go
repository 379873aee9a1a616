package oauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildErrorRedirect(t *testing.T) {
	t.Run("appends error parameters", func(t *testing.T) {
		location, err := BuildErrorRedirect("/authorize", ErrInvalidRequest, "missing response_type")
		require.NoError(t, err)

		u, err := url.Parse(location)
		require.NoError(t, err)
		assert.Equal(t, "/authorize", u.Path)
		assert.Equal(t, "invalid_request", u.Query().Get("error"))
		assert.Equal(t, "missing response_type", u.Query().Get("error_description"))
	})

	t.Run("omits empty description", func(t *testing.T) {
		location, err := BuildErrorRedirect("/authorize", ErrInvalidScope, "")
		require.NoError(t, err)

		u, err := url.Parse(location)
		require.NoError(t, err)
		assert.False(t, u.Query().Has("error_description"))
	})

	t.Run("url-encodes the description", func(t *testing.T) {
		location, err := BuildErrorRedirect("/authorize", ErrInvalidRequest, "missing/invalid redirect_uri")
		require.NoError(t, err)
		assert.Contains(t, location, "error_description=missing%2Finvalid+redirect_uri")
	})

	t.Run("preserves existing query parameters", func(t *testing.T) {
		location, err := BuildErrorRedirect("https://client.example.com/cb?keep=1", ErrUnauthorizedClient, "nope")
		require.NoError(t, err)

		u, err := url.Parse(location)
		require.NoError(t, err)
		assert.Equal(t, "1", u.Query().Get("keep"))
		assert.Equal(t, "unauthorized_client", u.Query().Get("error"))
	})
}

func TestWriteAuthorizeError(t *testing.T) {
	r := httptest.NewRequest("GET", "/authorize", nil)
	w := httptest.NewRecorder()

	WriteAuthorizeError(w, r, "/authorize", NewOAuthError(ErrInvalidRequest, "missing state"))

	assert.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	u, err := url.Parse(location)
	require.NoError(t, err)
	assert.Equal(t, "invalid_request", u.Query().Get("error"))
	assert.Equal(t, "missing state", u.Query().Get("error_description"))
}

func TestBouncedError(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		err := &BouncedError{Code: "access_denied", Description: "user declined"}
		assert.Equal(t, "access_denied - user declined", err.Error())
	})

	t.Run("without description", func(t *testing.T) {
		err := &BouncedError{Code: "access_denied"}
		assert.Equal(t, "access_denied", err.Error())
	})
}
