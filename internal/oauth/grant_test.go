package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGrantType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected GrantType
		resolved bool
	}{
		{"code flow", "code", GrantTypeCode, true},
		{"implicit flow", "token", GrantTypeToken, true},
		{"unknown value", "foo", "", false},
		{"empty value", "", "", false},
		{"case sensitive", "Code", "", false},
		{"no partial match", "codes", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grantType, ok := ResolveGrantType(tt.input)
			assert.Equal(t, tt.resolved, ok)
			assert.Equal(t, tt.expected, grantType)
		})
	}
}
