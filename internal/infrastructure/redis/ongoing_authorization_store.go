// Package redis provides Redis-backed implementations of domain interfaces.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
)

// DefaultCodeKeyPrefix namespaces authorization-code keys.
const DefaultCodeKeyPrefix = "authz:code:"

// OngoingAuthorizationStore keeps ongoing authorizations as JSON values under
// prefix+code. Keys outlive the logical expiration by retention so an expired
// code is still seen, and reported as expired, for a while.
type OngoingAuthorizationStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewOngoingAuthorizationStore creates a store.
func NewOngoingAuthorizationStore(client redis.UniversalClient, prefix string, retention time.Duration) *OngoingAuthorizationStore {
	if prefix == "" {
		prefix = DefaultCodeKeyPrefix
	}
	if retention < 0 {
		retention = 0
	}
	return &OngoingAuthorizationStore{client: client, prefix: prefix, retention: retention, now: time.Now}
}

var _ repository.OngoingAuthorizationRepository = (*OngoingAuthorizationStore)(nil)

func (s *OngoingAuthorizationStore) key(code string) string {
	return s.prefix + code
}

// Save writes the record only if the code is unused.
func (s *OngoingAuthorizationStore) Save(ctx context.Context, oa *models.OngoingAuthorization) error {
	data, err := json.Marshal(oa)
	if err != nil {
		return fmt.Errorf("failed to marshal ongoing authorization: %w", err)
	}

	ttl := oa.Expiration.Sub(s.now()) + s.retention
	if ttl <= 0 {
		return fmt.Errorf("ongoing authorization for client %s is already past its retention", oa.ClientID)
	}

	ok, err := s.client.SetNX(ctx, s.key(oa.AuthorizationCode), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store ongoing authorization: %w", err)
	}
	if !ok {
		return fmt.Errorf("authorization code collision for client %s", oa.ClientID)
	}
	return nil
}

// FindByCode returns the record, nil when absent.
func (s *OngoingAuthorizationStore) FindByCode(ctx context.Context, code string) (*models.OngoingAuthorization, error) {
	data, err := s.client.Get(ctx, s.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ongoing authorization: %w", err)
	}

	var oa models.OngoingAuthorization
	if err := json.Unmarshal(data, &oa); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ongoing authorization: %w", err)
	}
	return &oa, nil
}

// Delete removes the record. DEL is atomic, so among concurrent callers exactly
// one observes true.
func (s *OngoingAuthorizationStore) Delete(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete ongoing authorization: %w", err)
	}
	return n > 0, nil
}
