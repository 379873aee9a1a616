package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dgellow/oauth-front/internal/oauth"
)

// Secret is a string that redacts itself when printed and resolves
// {"$env": "VAR_NAME"} references at load time, keeping secret material out
// of config files.
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		*s = Secret(v)
	case map[string]any:
		name, ok := v["$env"].(string)
		if !ok {
			return fmt.Errorf(`secret reference must use {"$env": "VAR_NAME"} format`)
		}
		value, ok := os.LookupEnv(name)
		if !ok {
			return fmt.Errorf("environment variable %s is not set", name)
		}
		*s = Secret(value)
	default:
		return fmt.Errorf("secret must be a string or an env reference")
	}
	return nil
}

// Duration parses Go duration strings in JSON config
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

type Config struct {
	Version string         `json:"version"`
	Server  ServerConfig   `json:"server"`
	Auth    AuthConfig     `json:"auth"`
	Clients []ClientConfig `json:"clients"`
	Users   []UserConfig   `json:"users"`
}

type ServerConfig struct {
	BaseURL string `json:"baseURL"`
	Addr    string `json:"addr"`
}

type AuthConfig struct {
	Storage         StorageKind     `json:"storage"`
	PendingTTL      Duration        `json:"pendingTtl,omitempty"`
	CodeTTL         Duration        `json:"codeTtl,omitempty"`
	CleanupInterval Duration        `json:"cleanupInterval,omitempty"`
	Firestore       FirestoreConfig `json:"firestore,omitempty"`
}

type FirestoreConfig struct {
	ProjectID  string `json:"projectId"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection"`
}

type ClientConfig struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	AssertionType string   `json:"assertionType,omitempty"`
	Secret        Secret   `json:"secret,omitempty"`
	RedirectURIs  []string `json:"redirectUris"`
	GrantTypes    []string `json:"grantTypes"`
	Scopes        []string `json:"scopes,omitempty"`
}

type UserConfig struct {
	Username     string `json:"username"`
	PasswordHash Secret `json:"passwordHash"`
}

// Load reads and validates the config file. Env references in secrets are
// resolved during unmarshal.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates raw config bytes.
func Parse(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	if err := Validate(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate checks structural requirements and applies defaults.
func Validate(config *Config) error {
	if config.Version == "" {
		return fmt.Errorf("config version is required")
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":4000"
	}
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if _, err := url.Parse(config.Server.BaseURL); err != nil {
		return fmt.Errorf("server.baseURL is not a valid URL: %w", err)
	}

	switch config.Auth.Storage {
	case "", StorageMemory:
		config.Auth.Storage = StorageMemory
	case StorageFirestore:
		if config.Auth.Firestore.ProjectID == "" {
			return fmt.Errorf("auth.firestore.projectId is required for firestore storage")
		}
		if config.Auth.Firestore.Collection == "" {
			config.Auth.Firestore.Collection = "oauth_front_clients"
		}
	default:
		return fmt.Errorf("unsupported auth.storage: %s", config.Auth.Storage)
	}

	if len(config.Clients) == 0 {
		return fmt.Errorf("at least one client must be registered")
	}
	for i, client := range config.Clients {
		if client.ID == "" {
			return fmt.Errorf("clients[%d].id is required", i)
		}
		if client.Type != "confidential" && client.Type != "public" {
			return fmt.Errorf("clients[%d].type must be confidential or public", i)
		}
		if client.Type == "confidential" && client.Secret == "" {
			return fmt.Errorf("clients[%d]: confidential clients require a secret", i)
		}
		if len(client.RedirectURIs) == 0 {
			return fmt.Errorf("clients[%d]: at least one redirect URI is required", i)
		}
		for _, uri := range client.RedirectURIs {
			parsed, err := url.Parse(uri)
			if err != nil || !parsed.IsAbs() {
				return fmt.Errorf("clients[%d]: redirect URI %q must be an absolute URL", i, uri)
			}
		}
		if len(client.GrantTypes) == 0 {
			return fmt.Errorf("clients[%d]: at least one grant type is required", i)
		}
		for _, g := range client.GrantTypes {
			if _, ok := oauth.ResolveGrantType(g); !ok {
				return fmt.Errorf("clients[%d]: unknown grant type %q", i, g)
			}
		}
	}

	for i, user := range config.Users {
		if user.Username == "" {
			return fmt.Errorf("users[%d].username is required", i)
		}
		if user.PasswordHash == "" {
			return fmt.Errorf("users[%d].passwordHash is required", i)
		}
	}

	return nil
}
