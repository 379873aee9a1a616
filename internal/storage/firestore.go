package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/oauth"
	"github.com/ory/fosite"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage implements client and grant storage on Google Cloud
// Firestore.
//
// Error handling strategy:
// - Read operations: return errors (client data must be available for the
//   pipeline to work)
// - Write operations: log and continue (the in-memory cache keeps serving)
//
// Pending authorizations are deliberately kept in process memory only: they
// live for minutes between the authorization GET and the credential POST,
// and the take-removes contract needs an atomic local operation.
type FirestoreStorage struct {
	client           *firestore.Client
	pending          sync.Map // map[string]*oauth.PendingAuthorization
	clients          map[string]*Client
	clientsMutex     sync.RWMutex
	clientLoads      singleflight.Group
	clientCollection string
	grantCollection  string
}

var _ Storage = (*FirestoreStorage)(nil)

// ClientEntity is the client document shape in Firestore
type ClientEntity struct {
	ID            string   `firestore:"id"`
	Type          string   `firestore:"type"`
	Secret        []byte   `firestore:"secret,omitempty"`
	AssertionType string   `firestore:"assertion_type,omitempty"`
	RedirectURIs  []string `firestore:"redirect_uris"`
	GrantTypes    []string `firestore:"grant_types"`
	Scopes        []string `firestore:"scopes"`
	CreatedAt     int64    `firestore:"created_at"`
}

func (e *ClientEntity) toClient() *Client {
	return &Client{
		ID:            e.ID,
		Type:          ClientType(e.Type),
		Secret:        e.Secret,
		AssertionType: ClientAssertionType(e.AssertionType),
		RedirectURIs:  e.RedirectURIs,
		GrantTypes:    e.GrantTypes,
		Scopes:        e.Scopes,
		CreatedAt:     e.CreatedAt,
	}
}

func entityFromClient(c *Client) *ClientEntity {
	return &ClientEntity{
		ID:            c.ID,
		Type:          string(c.Type),
		Secret:        c.Secret,
		AssertionType: string(c.AssertionType),
		RedirectURIs:  c.RedirectURIs,
		GrantTypes:    c.GrantTypes,
		Scopes:        c.Scopes,
		CreatedAt:     c.CreatedAt,
	}
}

// GrantEntity is the issued-grant document shape in Firestore
type GrantEntity struct {
	Code        string    `firestore:"code"`
	ClientID    string    `firestore:"client_id"`
	RedirectURI string    `firestore:"redirect_uri"`
	Scope       string    `firestore:"scope,omitempty"`
	CreatedAt   time.Time `firestore:"created_at"`
	ExpiresAt   time.Time `firestore:"expires_at"`
}

// NewFirestoreStorage creates a Firestore-backed storage instance and
// preloads registered clients into memory.
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	s := &FirestoreStorage{
		client:           client,
		clients:          make(map[string]*Client),
		clientCollection: collection,
		grantCollection:  collection + "_grants",
	}

	if err := s.loadClients(ctx); err != nil {
		log.LogError("Failed to load clients from Firestore: %v", err)
		// Don't fail startup, just log the error
	}
	return s, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}

// loadClients loads all registered clients from Firestore into memory
func (s *FirestoreStorage) loadClients(ctx context.Context) error {
	iter := s.client.Collection(s.clientCollection).Documents(ctx)
	defer iter.Stop()

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	loaded := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("error iterating Firestore documents: %w", err)
		}

		var entity ClientEntity
		if err := doc.DataTo(&entity); err != nil {
			log.LogError("Failed to unmarshal client from Firestore (client_id: %s): %v", doc.Ref.ID, err)
			continue
		}

		s.clients[entity.ID] = entity.toClient()
		loaded++
	}

	log.Logf("Loaded %d OAuth clients from Firestore", loaded)
	return nil
}

// GetClient serves from the in-memory cache, loading from Firestore on a
// miss. Concurrent misses for the same client are collapsed into a single
// Firestore read.
func (s *FirestoreStorage) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	s.clientsMutex.RLock()
	client, ok := s.clients[id]
	s.clientsMutex.RUnlock()

	if ok {
		return client.ToFositeClient(), nil
	}

	loaded, err, _ := s.clientLoads.Do(id, func() (any, error) {
		return s.loadClient(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*Client).ToFositeClient(), nil
}

func (s *FirestoreStorage) loadClient(ctx context.Context, clientID string) (*Client, error) {
	doc, err := s.client.Collection(s.clientCollection).Doc(clientID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fosite.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client from Firestore: %w", err)
	}

	var entity ClientEntity
	if err := doc.DataTo(&entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}

	client := entity.toClient()
	s.clientsMutex.Lock()
	s.clients[clientID] = client
	s.clientsMutex.Unlock()
	return client, nil
}

func (s *FirestoreStorage) PutClient(ctx context.Context, client *Client) error {
	s.clientsMutex.Lock()
	s.clients[client.ID] = client
	s.clientsMutex.Unlock()

	if _, err := s.client.Collection(s.clientCollection).Doc(client.ID).Set(ctx, entityFromClient(client)); err != nil {
		log.LogErrorWithFields("storage", "Failed to persist client to Firestore", map[string]any{
			"client_id": client.ID,
			"error":     err.Error(),
		})
	}
	return nil
}

// PutPendingAuthorization stores the in-flight authorization in memory only.
func (s *FirestoreStorage) PutPendingAuthorization(_ context.Context, pending *oauth.PendingAuthorization) error {
	s.pending.Store(pending.State, pending)
	return nil
}

// TakePendingAuthorization atomically removes and returns the pending record;
// LoadAndDelete guarantees at-most-once consumption under concurrent POSTs.
func (s *FirestoreStorage) TakePendingAuthorization(_ context.Context, state string) (*oauth.PendingAuthorization, bool, error) {
	value, ok := s.pending.LoadAndDelete(state)
	if !ok {
		return nil, false, nil
	}

	pending := value.(*oauth.PendingAuthorization)
	if pending.Expired(time.Now()) {
		return nil, false, nil
	}
	return pending, true, nil
}

func (s *FirestoreStorage) PutGrant(ctx context.Context, grant *oauth.Grant) error {
	entity := &GrantEntity{
		Code:        grant.Code,
		ClientID:    grant.ClientID,
		RedirectURI: grant.RedirectURI,
		Scope:       grant.Scope,
		CreatedAt:   grant.CreatedAt,
		ExpiresAt:   grant.ExpiresAt,
	}

	if _, err := s.client.Collection(s.grantCollection).Doc(grant.Code).Set(ctx, entity); err != nil {
		log.LogErrorWithFields("storage", "Failed to persist grant to Firestore", map[string]any{
			"client_id": grant.ClientID,
			"error":     err.Error(),
		})
	}
	return nil
}

// CleanupExpired evicts expired pending authorizations from memory and
// expired grants from Firestore.
func (s *FirestoreStorage) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now()
	removed := 0

	s.pending.Range(func(key, value any) bool {
		if value.(*oauth.PendingAuthorization).Expired(now) {
			if _, loaded := s.pending.LoadAndDelete(key); loaded {
				removed++
			}
		}
		return true
	})

	iter := s.client.Collection(s.grantCollection).Where("expires_at", "<", now).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("error iterating expired grants: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			log.LogError("Failed to delete expired grant %s: %v", doc.Ref.ID, err)
			continue
		}
		removed++
	}

	return removed, nil
}
