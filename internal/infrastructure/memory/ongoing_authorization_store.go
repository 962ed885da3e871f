// Package memory provides process-local implementations of the domain repositories.
// They back single-node development deployments and the test suites.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
)

// OngoingAuthorizationStore keeps authorization codes in a mutex-guarded map.
type OngoingAuthorizationStore struct {
	mu      sync.Mutex
	records map[string]models.OngoingAuthorization
}

// NewOngoingAuthorizationStore creates an empty store.
func NewOngoingAuthorizationStore() *OngoingAuthorizationStore {
	return &OngoingAuthorizationStore{records: make(map[string]models.OngoingAuthorization)}
}

var _ repository.OngoingAuthorizationRepository = (*OngoingAuthorizationStore)(nil)

// Save stores a copy of oa. A code that is already stored is rejected.
func (s *OngoingAuthorizationStore) Save(ctx context.Context, oa *models.OngoingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[oa.AuthorizationCode]; ok {
		return fmt.Errorf("authorization code collision for client %s", oa.ClientID)
	}
	s.records[oa.AuthorizationCode] = *oa
	return nil
}

// FindByCode returns a copy of the record, nil when absent.
func (s *OngoingAuthorizationStore) FindByCode(ctx context.Context, code string) (*models.OngoingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oa, ok := s.records[code]
	if !ok {
		return nil, nil
	}
	return &oa, nil
}

// Delete removes the record and reports whether it existed.
func (s *OngoingAuthorizationStore) Delete(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[code]; !ok {
		return false, nil
	}
	delete(s.records, code)
	return true, nil
}

// Len returns the number of stored records.
func (s *OngoingAuthorizationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
