package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/dgellow/oauth-front/internal/server"
	"github.com/dgellow/oauth-front/internal/storage"
	"github.com/dgellow/oauth-front/internal/userauth"
)

// OAuthFront is the assembled authorization server application
type OAuthFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	cleanup    *storage.CleanupManager
	storage    storage.Storage
}

// NewOAuthFront builds the application with all dependencies wired
func NewOAuthFront(ctx context.Context, cfg config.Config) (*OAuthFront, error) {
	log.LogInfoWithFields("oauthfront", "Building authorization server", map[string]any{
		"baseURL": cfg.Server.BaseURL,
		"storage": string(cfg.Auth.Storage),
		"clients": len(cfg.Clients),
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := seedClients(ctx, cfg, store); err != nil {
		return nil, fmt.Errorf("failed to seed clients: %w", err)
	}

	gateway, err := buildGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build authentication gateway: %w", err)
	}

	authServer := oauth.NewAuthorizationServer(store, store, store, gateway, oauth.AuthorizationServerConfig{
		PendingTTL:   time.Duration(cfg.Auth.PendingTTL),
		CodeLifespan: time.Duration(cfg.Auth.CodeTTL),
	})

	authHandlers := server.NewAuthHandlers(authServer)

	middlewares := []server.MiddlewareFunc{
		server.NewLoggingMiddleware(),
		server.NewCORSMiddleware(nil),
	}

	mux := http.NewServeMux()
	mux.Handle("/health", server.NewHealthHandler())
	mux.Handle("/authorize", server.ChainMiddleware(http.HandlerFunc(authHandlers.AuthorizeHandler), middlewares...))
	mux.Handle("/login", server.ChainMiddleware(http.HandlerFunc(authHandlers.LoginHandler), middlewares...))

	cleanupInterval := time.Duration(cfg.Auth.CleanupInterval)
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	return &OAuthFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(mux, cfg.Server.Addr),
		cleanup:    storage.NewCleanupManager(store, cleanupInterval),
		storage:    store,
	}, nil
}

// Run starts the application and blocks until shutdown
func (a *OAuthFront) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if closer, ok := a.storage.(io.Closer); ok {
		defer closer.Close()
	}

	a.cleanup.Start(ctx)
	defer a.cleanup.Stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.httpServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Logf("Received signal %s, shutting down", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return a.httpServer.Stop(shutdownCtx)
}

func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	switch cfg.Auth.Storage {
	case config.StorageFirestore:
		return storage.NewFirestoreStorage(ctx,
			cfg.Auth.Firestore.ProjectID,
			cfg.Auth.Firestore.Database,
			cfg.Auth.Firestore.Collection)
	default:
		return storage.NewMemoryStorage(), nil
	}
}

// seedClients registers the configured clients. Confidential client secrets
// arrive in plaintext (via env references) and are hashed before storage.
func seedClients(ctx context.Context, cfg config.Config, store storage.Storage) error {
	for _, c := range cfg.Clients {
		var secret []byte
		if c.Secret != "" {
			hashed, err := crypto.HashSecret(string(c.Secret))
			if err != nil {
				return fmt.Errorf("hashing secret for client %q: %w", c.ID, err)
			}
			secret = hashed
		}

		client := &storage.Client{
			ID:            c.ID,
			Type:          storage.ClientType(c.Type),
			Secret:        secret,
			AssertionType: storage.ClientAssertionType(c.AssertionType),
			RedirectURIs:  c.RedirectURIs,
			GrantTypes:    c.GrantTypes,
			Scopes:        c.Scopes,
			CreatedAt:     time.Now().Unix(),
		}
		if err := store.PutClient(ctx, client); err != nil {
			return fmt.Errorf("registering client %q: %w", c.ID, err)
		}

		log.LogInfoWithFields("oauthfront", "Registered client", map[string]any{
			"client_id":     c.ID,
			"type":          c.Type,
			"redirect_uris": len(c.RedirectURIs),
		})
	}
	return nil
}

func buildGateway(cfg config.Config) (userauth.Gateway, error) {
	users := make(map[string][]byte, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = []byte(u.PasswordHash)
	}
	return userauth.NewStaticGateway(users), nil
}
