package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
)

// OngoingAuthorizationFactory creates the record behind a fresh authorization code.
type OngoingAuthorizationFactory struct {
	ttl     time.Duration
	now     Clock
	newCode func() string
}

// NewOngoingAuthorizationFactory creates a factory issuing codes valid for ttl.
// A non-positive ttl selects the default of one minute.
func NewOngoingAuthorizationFactory(ttl time.Duration, now Clock) *OngoingAuthorizationFactory {
	if ttl <= 0 {
		ttl = constants.AuthorizationCodeDefaultTTL
	}
	return &OngoingAuthorizationFactory{ttl: ttl, now: clockOrNow(now), newCode: uuid.NewString}
}

// TTL returns the configured code lifetime.
func (f *OngoingAuthorizationFactory) TTL() time.Duration {
	return f.ttl
}

// Create snapshots the user and the negotiated scope under a new code.
func (f *OngoingAuthorizationFactory) Create(c *models.AuthorizationContext, scope models.Scopes) *models.OngoingAuthorization {
	return &models.OngoingAuthorization{
		AuthorizationCode: f.newCode(),
		ClientID:          c.Client.ClientID,
		RedirectURI:       c.Request.RedirectURI,
		UserInfo:          c.User.User,
		Scope:             models.NewScopes(scope...),
		Expiration:        f.now().Add(f.ttl),
	}
}
