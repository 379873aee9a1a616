package storage

import (
	"context"

	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/ory/fosite"
)

// ClientType distinguishes confidential from public clients
type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential"
	ClientTypePublic       ClientType = "public"
)

// ClientAssertionType is the mechanism a confidential client authenticates with
type ClientAssertionType string

const (
	AssertionTypeBasic     ClientAssertionType = "basic"
	AssertionTypeJWTBearer ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// Client is a registered OAuth application. Created by an external
// registration process (here: seeded from config at startup) and read-only
// to the request pipeline.
type Client struct {
	ID            string
	Type          ClientType
	Secret        []byte // bcrypt hash; confidential clients only
	AssertionType ClientAssertionType
	RedirectURIs  []string
	GrantTypes    []string // wire values: "code", "token"
	Scopes        []string

	CreatedAt int64
}

// ToFositeClient converts the record to the client shape the validator
// consumes. The wire-level grant values double as response types; fosite's
// grant-type vocabulary names the same flows differently.
func (c *Client) ToFositeClient() *fosite.DefaultClient {
	grantTypes := make([]string, 0, len(c.GrantTypes))
	for _, g := range c.GrantTypes {
		switch oauth.GrantType(g) {
		case oauth.GrantTypeCode:
			grantTypes = append(grantTypes, "authorization_code")
		case oauth.GrantTypeToken:
			grantTypes = append(grantTypes, "implicit")
		}
	}

	return &fosite.DefaultClient{
		ID:            c.ID,
		Secret:        c.Secret,
		RedirectURIs:  c.RedirectURIs,
		Scopes:        c.Scopes,
		GrantTypes:    grantTypes,
		ResponseTypes: c.GrantTypes,
		Public:        c.Type == ClientTypePublic,
	}
}

// Storage combines the collaborator interfaces the authorization pipeline
// consumes with the management surface the bootstrap and cleanup paths need.
type Storage interface {
	oauth.ClientDirectory
	oauth.PendingStore
	oauth.GrantStore

	// PutClient registers a client. Used at startup to seed the directory.
	PutClient(ctx context.Context, client *Client) error

	// CleanupExpired evicts expired pending authorizations and grants,
	// returning the number of records removed.
	CleanupExpired(ctx context.Context) (int, error)
}
