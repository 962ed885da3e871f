package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
)

// ClientRegistryImpl stores client registrations in the oauth_clients table.
type ClientRegistryImpl struct {
	db *gorm.DB
}

// NewClientRegistry creates a GORM-backed client repository.
func NewClientRegistry(db *gorm.DB) *ClientRegistryImpl {
	return &ClientRegistryImpl{db: db}
}

var _ repository.ClientRepository = (*ClientRegistryImpl)(nil)

// FindByClientID returns the client or nil when unregistered.
func (r *ClientRegistryImpl) FindByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	return r.findOne(ctx, "client_id = ?", clientID)
}

// FindByAudience returns the resource server registered under audience, or nil.
func (r *ClientRegistryImpl) FindByAudience(ctx context.Context, audience string) (*models.OAuthClient, error) {
	return r.findOne(ctx, "audience = ?", audience)
}

func (r *ClientRegistryImpl) findOne(ctx context.Context, query string, arg string) (*models.OAuthClient, error) {
	if arg == "" {
		return nil, nil
	}
	var client models.OAuthClient
	if err := r.db.WithContext(ctx).Where(query, arg).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	return &client, nil
}

// Save inserts the client or overwrites the registration with the same client_id.
func (r *ClientRegistryImpl) Save(ctx context.Context, client *models.OAuthClient) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		UpdateAll: true,
	}).Create(client).Error
	if err != nil {
		return fmt.Errorf("failed to save client %s: %w", client.ClientID, err)
	}
	return nil
}

// List returns all registrations ordered by name.
func (r *ClientRegistryImpl) List(ctx context.Context) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	if err := r.db.WithContext(ctx).Order("name").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Delete removes a registration. Missing clients are not an error.
func (r *ClientRegistryImpl) Delete(ctx context.Context, clientID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.OAuthClient{}, "client_id = ?", clientID).Error; err != nil {
		return fmt.Errorf("failed to delete client %s: %w", clientID, err)
	}
	return nil
}
