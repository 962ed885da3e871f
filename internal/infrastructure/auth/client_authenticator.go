package auth

import (
	"context"
	"fmt"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// ClientAuthenticator verifies client credentials presented at the token,
// introspection and revocation endpoints.
type ClientAuthenticator struct {
	clients repository.ClientRegistry
	logger  logger.Logger
}

// NewClientAuthenticator creates the authenticator.
func NewClientAuthenticator(clients repository.ClientRegistry, log logger.Logger) *ClientAuthenticator {
	return &ClientAuthenticator{clients: clients, logger: log.WithComponent("ClientAuthenticator")}
}

// AuthenticateClient returns the client whose secret matches, or InvalidClient.
// Clients registered without a secret cannot authenticate.
func (a *ClientAuthenticator) AuthenticateClient(ctx context.Context, clientID, secret string) (*models.OAuthClient, error) {
	if clientID == "" || secret == "" {
		return nil, apperrors.ErrInvalidClient("client authentication required")
	}

	client, err := a.clients.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}

	hash := ""
	if client != nil {
		hash = client.ClientSecretHash
	}
	if !VerifySecret(secret, hash) {
		a.logger.Warn(ctx, "Client authentication failed", logger.String("client_id", clientID))
		return nil, apperrors.ErrInvalidClient("client authentication failed")
	}
	return client, nil
}
