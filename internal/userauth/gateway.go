package userauth

import (
	"context"

	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/log"
)

// Credentials carries the resource owner's login form values.
type Credentials struct {
	Username string
	Password string
}

// Result reports whether the credentials were accepted.
type Result struct {
	Authenticated bool
}

// Gateway verifies resource-owner credentials. Implementations may call out
// to an external identity system; the context bounds that call.
type Gateway interface {
	Authenticate(ctx context.Context, creds Credentials) (Result, error)
}

// StaticGateway authenticates against a fixed set of users with bcrypt-hashed
// passwords, typically seeded from config.
type StaticGateway struct {
	users map[string][]byte // username -> bcrypt hash
}

var _ Gateway = (*StaticGateway)(nil)

func NewStaticGateway(users map[string][]byte) *StaticGateway {
	return &StaticGateway{users: users}
}

func (g *StaticGateway) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	hash, ok := g.users[creds.Username]
	if !ok {
		log.LogDebugWithFields("userauth", "Unknown user", map[string]any{
			"username": creds.Username,
		})
		return Result{Authenticated: false}, nil
	}

	if err := crypto.CompareSecret(hash, creds.Password); err != nil {
		return Result{Authenticated: false}, nil
	}
	return Result{Authenticated: true}, nil
}
