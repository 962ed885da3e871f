package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/errors"
)

// ScopePresentVerifier requires a non-empty scope.
type ScopePresentVerifier struct{}

func (ScopePresentVerifier) Name() string { return "scope_present" }

func (ScopePresentVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	if c.Request.Scope.IsEmpty() {
		return errors.ErrMissingParameter("scope")
	}
	return nil
}

// PasswordCredentialsVerifier requires username and password.
type PasswordCredentialsVerifier struct{}

func (PasswordCredentialsVerifier) Name() string { return "password_credentials" }

func (PasswordCredentialsVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	if c.Request.Username == "" {
		return errors.ErrMissingParameter("username")
	}
	if c.Request.Password == "" {
		return errors.ErrMissingParameter("password")
	}
	return nil
}
