package memory

import (
	"context"
	"sync"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
)

// ClientRegistry holds registrations in memory, indexed by client ID and audience.
type ClientRegistry struct {
	mu         sync.RWMutex
	byID       map[string]*models.OAuthClient
	byAudience map[string]*models.OAuthClient
}

// NewClientRegistry creates a registry seeded with clients.
func NewClientRegistry(clients ...*models.OAuthClient) *ClientRegistry {
	r := &ClientRegistry{
		byID:       make(map[string]*models.OAuthClient),
		byAudience: make(map[string]*models.OAuthClient),
	}
	for _, c := range clients {
		_ = r.Save(context.Background(), c)
	}
	return r
}

var _ repository.ClientRepository = (*ClientRegistry)(nil)

func (r *ClientRegistry) FindByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[clientID], nil
}

func (r *ClientRegistry) FindByAudience(ctx context.Context, audience string) (*models.OAuthClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byAudience[audience], nil
}

func (r *ClientRegistry) Save(ctx context.Context, client *models.OAuthClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *client
	r.byID[c.ClientID] = &c
	if c.Audience != "" {
		r.byAudience[c.Audience] = &c
	}
	return nil
}

// UserRepository holds users in memory.
type UserRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.User
	byName map[string]*models.User
}

// NewUserRepository creates a repository seeded with users.
func NewUserRepository(users ...*models.User) *UserRepository {
	r := &UserRepository{byID: make(map[string]*models.User), byName: make(map[string]*models.User)}
	for _, u := range users {
		_ = r.Save(context.Background(), u)
	}
	return r
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[username], nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id], nil
}

func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.byID[u.ID] = &u
	r.byName[u.Username] = &u
	return nil
}
