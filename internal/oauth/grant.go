package oauth

import "time"

// GrantType is the OAuth flow variant a client requests via response_type.
type GrantType string

const (
	// GrantTypeCode is the authorization code flow.
	GrantTypeCode GrantType = "code"
	// GrantTypeToken is the implicit flow.
	GrantTypeToken GrantType = "token"
)

func (g GrantType) String() string { return string(g) }

// ResolveGrantType maps a wire-level response_type value to a grant type.
// Matching is exact and case-sensitive. An unknown value is a miss, not an
// error; callers map a miss to unsupported_response_type.
func ResolveGrantType(responseType string) (GrantType, bool) {
	switch GrantType(responseType) {
	case GrantTypeCode:
		return GrantTypeCode, true
	case GrantTypeToken:
		return GrantTypeToken, true
	}
	return "", false
}

// PendingAuthorization is an in-flight authorization transaction, created by
// a validated GET and consumed exactly once by the matching credential POST.
// The client-supplied state is the store key, so it must be treated as
// single-use and short-lived.
type PendingAuthorization struct {
	State       string    `json:"state"`
	ClientID    string    `json:"client_id"`
	GrantType   GrantType `json:"grant_type"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope,omitempty"` // space-delimited, empty means unset
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the record has aged out. An expired record is
// treated identically to a missing one.
func (p *PendingAuthorization) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Grant is an issued authorization code, bound to the client, redirect URI,
// and scope it was granted for. Single-use; a token-exchange component would
// consume it.
type Grant struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
