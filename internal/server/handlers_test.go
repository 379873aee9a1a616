package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/dgellow/oauth-front/internal/storage"
	"github.com/dgellow/oauth-front/internal/userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	store := storage.NewMemoryStorage()
	require.NoError(t, store.PutClient(context.Background(), &storage.Client{
		ID:           "test-client",
		Type:         storage.ClientTypePublic,
		RedirectURIs: []string{"http://localhost:3000/cb"},
		GrantTypes:   []string{"code"},
		Scopes:       []string{"read", "write"},
	}))

	hash, err := crypto.HashSecret("s3cret")
	require.NoError(t, err)
	gateway := userauth.NewStaticGateway(map[string][]byte{"alice": hash})

	authServer := oauth.NewAuthorizationServer(store, store, store, gateway, oauth.AuthorizationServerConfig{})
	handlers := NewAuthHandlers(authServer)

	mux := http.NewServeMux()
	mux.Handle("/health", NewHealthHandler())
	mux.HandleFunc("/authorize", handlers.AuthorizeHandler)
	mux.HandleFunc("/login", handlers.LoginHandler)
	return mux
}

// authCodeURL builds the authorization request the way a relying party would
func authCodeURL(state string, scopes ...string) string {
	conf := &oauth2.Config{
		ClientID:    "test-client",
		RedirectURL: "http://localhost:3000/cb",
		Scopes:      scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: "/authorize"},
	}
	return conf.AuthCodeURL(state)
}

func postCredentials(t *testing.T, mux *http.ServeMux, state string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/authorize?state="+url.QueryEscape(state), strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

var validCredentials = url.Values{"username": {"alice"}, "password": {"s3cret"}}

func TestAuthorizeHandler_GET(t *testing.T) {
	t.Run("valid request redirects to the login surface", func(t *testing.T) {
		mux := newTestMux(t)

		r := httptest.NewRequest("GET", authCodeURL("state-1", "read"), nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		require.Equal(t, http.StatusFound, w.Code)
		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", location.Path)
		assert.Equal(t, "state-1", location.Query().Get("state"))
		assert.Equal(t, "test-client", location.Query().Get("client_id"))
	})

	t.Run("validation failure redirects with error parameters", func(t *testing.T) {
		mux := newTestMux(t)

		r := httptest.NewRequest("GET", "/authorize?client_id=test-client&state=s", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		require.Equal(t, http.StatusFound, w.Code)
		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/authorize", location.Path)
		assert.Equal(t, "invalid_request", location.Query().Get("error"))
	})

	t.Run("error bounce is rendered directly", func(t *testing.T) {
		mux := newTestMux(t)

		r := httptest.NewRequest("GET", "/authorize?error=access_denied&error_description=nope", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "access_denied")
	})

	t.Run("unsupported method", func(t *testing.T) {
		mux := newTestMux(t)

		r := httptest.NewRequest("DELETE", "/authorize", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthorizeHandler_POST(t *testing.T) {
	begin := func(t *testing.T, mux *http.ServeMux, state string) {
		t.Helper()
		r := httptest.NewRequest("GET", authCodeURL(state, "read"), nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		require.Equal(t, http.StatusFound, w.Code)
	}

	t.Run("correct credentials redirect to the client with a code", func(t *testing.T) {
		mux := newTestMux(t)
		begin(t, mux, "state-1")

		w := postCredentials(t, mux, "state-1", validCredentials)

		require.Equal(t, http.StatusFound, w.Code)
		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "localhost:3000", location.Host)
		assert.Equal(t, "/cb", location.Path)
		assert.NotEmpty(t, location.Query().Get("code"))
		assert.Equal(t, "state-1", location.Query().Get("state"))
	})

	t.Run("replayed state is rejected", func(t *testing.T) {
		mux := newTestMux(t)
		begin(t, mux, "state-1")

		first := postCredentials(t, mux, "state-1", validCredentials)
		require.Equal(t, http.StatusFound, first.Code)

		second := postCredentials(t, mux, "state-1", validCredentials)
		require.Equal(t, http.StatusFound, second.Code)
		location, err := url.Parse(second.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/authorize", location.Path)
		assert.Equal(t, "invalid_request", location.Query().Get("error"))
	})

	t.Run("wrong credentials are unauthorized without a redirect", func(t *testing.T) {
		mux := newTestMux(t)
		begin(t, mux, "state-1")

		w := postCredentials(t, mux, "state-1", url.Values{
			"username": {"alice"},
			"password": {"wrong"},
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("missing credentials are unprocessable", func(t *testing.T) {
		mux := newTestMux(t)
		begin(t, mux, "state-1")

		w := postCredentials(t, mux, "state-1", url.Values{"username": {"alice"}})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestLoginHandler(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest("GET", "/login?state=state-1&client_id=test-client", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `method="POST"`)
	assert.Contains(t, body, "/authorize?state=state-1")
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="password"`)
}

func TestHealthHandler(t *testing.T) {
	mux := newTestMux(t)

	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
