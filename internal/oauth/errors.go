package oauth

import (
	"fmt"
	"net/http"
	"net/url"

	jsonwriter "github.com/dgellow/oauth-front/internal/json"
)

type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "invalid_request"
	ErrUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrInvalidScope            ErrorCode = "invalid_scope"
	ErrServerError             ErrorCode = "server_error"
)

// OAuthError is a protocol-level validation failure, surfaced to the client
// via redirect with error and error_description parameters.
type OAuthError struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return string(e.Code)
}

func NewOAuthError(code ErrorCode, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description}
}

// BouncedError is an error the authorization endpoint received back from a
// downstream component via the error/error_description query parameters. It
// is surfaced verbatim as a direct response, never as a fresh redirect.
type BouncedError struct {
	Code        string
	Description string
}

func (e *BouncedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Description)
	}
	return e.Code
}

// BuildErrorRedirect appends error and error_description to the given
// endpoint as URL-encoded query parameters. Pure function.
func BuildErrorRedirect(endpoint string, code ErrorCode, description string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing redirect endpoint: %w", err)
	}

	q := u.Query()
	q.Set("error", string(code))
	if description != "" {
		q.Set("error_description", description)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WriteAuthorizeError redirects the user agent to the endpoint with the
// protocol error attached. Falls back to a direct JSON error when no usable
// endpoint is available.
func WriteAuthorizeError(w http.ResponseWriter, r *http.Request, endpoint string, oauthErr *OAuthError) {
	location, err := BuildErrorRedirect(endpoint, oauthErr.Code, oauthErr.Description)
	if err != nil {
		jsonwriter.WriteBadRequest(w, oauthErr.Error())
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}
