package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/userauth"
	"github.com/ory/fosite"
)

// ClientDirectory is a read-only lookup of registered OAuth clients.
// A miss is reported as fosite.ErrNotFound.
type ClientDirectory interface {
	GetClient(ctx context.Context, id string) (fosite.Client, error)
}

// PendingStore holds in-flight authorization requests between the
// authorization GET and the credential POST. Take removes on read, so a
// state is consumed at most once even under concurrent completions.
type PendingStore interface {
	PutPendingAuthorization(ctx context.Context, pending *PendingAuthorization) error
	TakePendingAuthorization(ctx context.Context, state string) (*PendingAuthorization, bool, error)
}

// GrantStore persists issued authorization codes.
type GrantStore interface {
	PutGrant(ctx context.Context, grant *Grant) error
}

// Completion outcomes that fall outside the OAuth error vocabulary. They
// occur after the protocol-level request was already accepted, so they are
// surfaced as plain status codes instead of redirects.
var (
	ErrMalformedCredentials = errors.New("username and password are required")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type AuthorizationServer struct {
	clients      ClientDirectory
	pending      PendingStore
	grants       GrantStore
	gateway      userauth.Gateway
	pendingTTL   time.Duration
	codeLifespan time.Duration
}

type AuthorizationServerConfig struct {
	PendingTTL   time.Duration
	CodeLifespan time.Duration
}

func NewAuthorizationServer(clients ClientDirectory, pending PendingStore, grants GrantStore, gateway userauth.Gateway, cfg AuthorizationServerConfig) *AuthorizationServer {
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.CodeLifespan == 0 {
		cfg.CodeLifespan = 10 * time.Minute
	}

	return &AuthorizationServer{
		clients:      clients,
		pending:      pending,
		grants:       grants,
		gateway:      gateway,
		pendingTTL:   cfg.PendingTTL,
		codeLifespan: cfg.CodeLifespan,
	}
}

// BeginAuthorization validates an authorization GET and records the pending
// transaction. Checks run in protocol order and short-circuit on the first
// failure, so the earliest structural fault is the one reported. Returns a
// *BouncedError when the query already carries an error parameter, an
// *OAuthError on a validation failure, or a non-protocol error when a
// collaborator fails.
func (s *AuthorizationServer) BeginAuthorization(ctx context.Context, q url.Values) (*PendingAuthorization, error) {
	if q.Has("error") {
		return nil, &BouncedError{
			Code:        q.Get("error"),
			Description: q.Get("error_description"),
		}
	}

	responseType, ok := singleValue(q, "response_type")
	if !ok {
		return nil, NewOAuthError(ErrInvalidRequest, "missing response_type")
	}

	grantType, ok := ResolveGrantType(responseType)
	if !ok {
		return nil, NewOAuthError(ErrUnsupportedResponseType, fmt.Sprintf("unsupported response_type %q", responseType))
	}

	clientID, ok := singleValue(q, "client_id")
	if !ok {
		return nil, NewOAuthError(ErrInvalidRequest, "malformed client_id")
	}

	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, fosite.ErrNotFound) {
			return nil, NewOAuthError(ErrInvalidRequest, "invalid client_id")
		}
		return nil, fmt.Errorf("looking up client %q: %w", clientID, err)
	}

	if !client.GetResponseTypes().Has(grantType.String()) {
		return nil, NewOAuthError(ErrUnauthorizedClient, fmt.Sprintf("client is not authorized for response_type %q", grantType))
	}

	var redirectURI string
	if q.Has("redirect_uri") {
		redirectURI, ok = singleValue(q, "redirect_uri")
		if !ok {
			return nil, NewOAuthError(ErrInvalidRequest, "malformed redirect_uri")
		}
	}

	registered := client.GetRedirectURIs()
	switch {
	case redirectURI != "" && len(registered) > 1 && !slices.Contains(registered, redirectURI):
		return nil, NewOAuthError(ErrInvalidRequest, "missing/invalid redirect_uri")
	case redirectURI == "" && len(registered) == 1:
		redirectURI = registered[0]
	case redirectURI == "":
		// several registered URIs and none supplied: nothing to resolve to
		return nil, NewOAuthError(ErrInvalidRequest, "missing/invalid redirect_uri")
	}

	var scope string
	if q.Has("scope") {
		scope, ok = singleValue(q, "scope")
		if !ok {
			return nil, NewOAuthError(ErrInvalidRequest, "malformed scope")
		}
		if scope != "" {
			for _, token := range strings.Split(scope, " ") {
				if !client.GetScopes().Has(token) {
					return nil, NewOAuthError(ErrInvalidScope, fmt.Sprintf("scope %q is not registered for this client", token))
				}
			}
		}
	}

	state, ok := singleValue(q, "state")
	if !ok || state == "" {
		return nil, NewOAuthError(ErrInvalidRequest, "missing state")
	}

	now := time.Now()
	pending := &PendingAuthorization{
		State:       state,
		ClientID:    clientID,
		GrantType:   grantType,
		RedirectURI: redirectURI,
		Scope:       scope,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.pendingTTL),
	}

	if err := s.pending.PutPendingAuthorization(ctx, pending); err != nil {
		return nil, fmt.Errorf("storing pending authorization: %w", err)
	}
	return pending, nil
}

// CompleteAuthorization consumes the pending record for the given state,
// verifies the resource owner's credentials, and builds the final redirect
// carrying the issued authorization code. The pending record is taken before
// the credentials are inspected, so a state is spent even by a failed POST.
func (s *AuthorizationServer) CompleteAuthorization(ctx context.Context, q, form url.Values) (*url.URL, error) {
	state, ok := singleValue(q, "state")
	if !ok || state == "" {
		return nil, NewOAuthError(ErrInvalidRequest, "missing state")
	}

	pending, found, err := s.pending.TakePendingAuthorization(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("taking pending authorization: %w", err)
	}
	if !found {
		return nil, NewOAuthError(ErrInvalidRequest, "invalid or expired state")
	}

	username, okUser := singleValue(form, "username")
	password, okPass := singleValue(form, "password")
	if !okUser || !okPass {
		return nil, ErrMalformedCredentials
	}

	result, err := s.gateway.Authenticate(ctx, userauth.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticating resource owner: %w", err)
	}
	if !result.Authenticated {
		return nil, ErrAuthenticationFailed
	}

	grant, err := s.issueGrant(ctx, pending)
	if err != nil {
		return nil, err
	}

	redirect, err := url.Parse(pending.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI %q: %w", pending.RedirectURI, err)
	}

	rq := redirect.Query()
	rq.Set("code", grant.Code)
	rq.Set("state", pending.State)
	if pending.Scope != "" {
		rq.Set("scope", pending.Scope)
	}
	redirect.RawQuery = rq.Encode()
	return redirect, nil
}

// issueGrant mints a single-use authorization code bound to the client,
// redirect URI, and granted scope of the pending transaction.
func (s *AuthorizationServer) issueGrant(ctx context.Context, pending *PendingAuthorization) (*Grant, error) {
	code, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := time.Now()
	grant := &Grant{
		Code:        code,
		ClientID:    pending.ClientID,
		RedirectURI: pending.RedirectURI,
		Scope:       pending.Scope,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.codeLifespan),
	}

	if err := s.grants.PutGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("storing grant: %w", err)
	}
	return grant, nil
}

// singleValue returns the parameter value when it is present exactly once.
func singleValue(q url.Values, key string) (string, bool) {
	vals := q[key]
	if len(vals) != 1 {
		return "", false
	}
	return vals[0], true
}
