package server

import (
	"errors"
	"net/http"

	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/oauth"
)

const (
	authorizeEndpoint = "/authorize"
	loginEndpoint     = "/login"
)

// AuthHandlers provides the authorization endpoint handlers with dependency
// injection
type AuthHandlers struct {
	authServer *oauth.AuthorizationServer
}

func NewAuthHandlers(authServer *oauth.AuthorizationServer) *AuthHandlers {
	return &AuthHandlers{authServer: authServer}
}

// AuthorizeHandler serves the authorization endpoint: GET starts a new
// authorization transaction, POST completes one with the resource owner's
// credentials.
func (h *AuthHandlers) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.beginAuthorization(w, r)
	case http.MethodPost:
		h.completeAuthorization(w, r)
	default:
		jsonwriter.WriteMethodNotAllowed(w, "only GET and POST are supported")
	}
}

func (h *AuthHandlers) beginAuthorization(w http.ResponseWriter, r *http.Request) {
	pending, err := h.authServer.BeginAuthorization(r.Context(), r.URL.Query())
	if err != nil {
		var bounced *oauth.BouncedError
		var oauthErr *oauth.OAuthError
		switch {
		case errors.As(err, &bounced):
			// Error bounce from a downstream component: render directly,
			// don't start a fresh redirect loop.
			jsonwriter.WriteBadRequest(w, bounced.Error())
		case errors.As(err, &oauthErr):
			log.LogDebugWithFields("auth", "Authorization request rejected", map[string]any{
				"error":       string(oauthErr.Code),
				"description": oauthErr.Description,
			})
			oauth.WriteAuthorizeError(w, r, authorizeEndpoint, oauthErr)
		default:
			log.LogError("Authorize request error: %v", err)
			jsonwriter.WriteInternalServerError(w, "Internal server error")
		}
		return
	}

	log.LogInfoWithFields("auth", "Authorization request accepted", map[string]any{
		"client_id":  pending.ClientID,
		"grant_type": pending.GrantType.String(),
	})

	// Hand off to the login surface with the original query intact
	http.Redirect(w, r, loginEndpoint+"?"+r.URL.RawQuery, http.StatusFound)
}

func (h *AuthHandlers) completeAuthorization(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteBadRequest(w, "Malformed form body")
		return
	}

	redirect, err := h.authServer.CompleteAuthorization(r.Context(), r.URL.Query(), r.PostForm)
	if err != nil {
		var oauthErr *oauth.OAuthError
		switch {
		case errors.As(err, &oauthErr):
			oauth.WriteAuthorizeError(w, r, authorizeEndpoint, oauthErr)
		case errors.Is(err, oauth.ErrMalformedCredentials):
			jsonwriter.WriteUnprocessableEntity(w, err.Error())
		case errors.Is(err, oauth.ErrAuthenticationFailed):
			jsonwriter.WriteUnauthorized(w, "Invalid username or password")
		default:
			log.LogError("Authorization completion error: %v", err)
			jsonwriter.WriteInternalServerError(w, "Internal server error")
		}
		return
	}

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// LoginHandler renders the credential-collection form. The form posts back
// to the authorization endpoint with the original query preserved.
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, "only GET is supported")
		return
	}

	action := authorizeEndpoint
	if r.URL.RawQuery != "" {
		action += "?" + r.URL.RawQuery
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPageTemplate.Execute(w, LoginPageData{ActionURL: action}); err != nil {
		log.LogError("Failed to render login page: %v", err)
	}
}
