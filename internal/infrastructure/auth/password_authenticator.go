package auth

import (
	"context"
	"fmt"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/internal/domain/service"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// PasswordAuthenticator checks resource owner credentials against stored bcrypt hashes.
type PasswordAuthenticator struct {
	users  repository.UserRepository
	logger logger.Logger
}

// NewPasswordAuthenticator creates the authenticator.
func NewPasswordAuthenticator(users repository.UserRepository, log logger.Logger) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, logger: log.WithComponent("PasswordAuthenticator")}
}

var _ service.UserAuthenticator = (*PasswordAuthenticator)(nil)

// Authenticate returns an authenticated *models.UserPrincipal, or AuthenticationFailed.
// Unknown users, disabled accounts and wrong passwords are indistinguishable to the caller.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (models.Principal, error) {
	if username == "" || password == "" {
		return nil, apperrors.ErrAuthenticationFailed("username and password are required")
	}

	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !VerifySecret(password, hash) {
		a.logger.Info(ctx, "Resource owner authentication rejected", logger.String("username", username))
		return nil, apperrors.ErrAuthenticationFailed("bad credentials")
	}
	if !user.Enabled {
		a.logger.Info(ctx, "Disabled account attempted to authenticate", logger.String("username", username))
		return nil, apperrors.ErrAuthenticationFailed("bad credentials")
	}

	return models.NewUserPrincipal(user), nil
}
