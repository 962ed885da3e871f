package memory

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
)

// AccessTokenDAO tracks issued tokens in memory.
type AccessTokenDAO struct {
	mu      sync.Mutex
	records map[string]models.AccessTokenInfo
}

// NewAccessTokenDAO creates an empty DAO.
func NewAccessTokenDAO() *AccessTokenDAO {
	return &AccessTokenDAO{records: make(map[string]models.AccessTokenInfo)}
}

var _ repository.AccessTokenDAO = (*AccessTokenDAO)(nil)

func (d *AccessTokenDAO) Create(ctx context.Context, info *models.AccessTokenInfo) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.records[info.TokenID]; exists {
		return false, nil
	}
	d.records[info.TokenID] = *info
	return true, nil
}

func (d *AccessTokenDAO) FindByJTI(ctx context.Context, jti string) (*models.AccessTokenInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.records[jti]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (d *AccessTokenDAO) MarkRevoked(ctx context.Context, jti string, revokedAt time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.records[jti]
	if !ok || info.Status != constants.TokenStatusActive {
		return false, nil
	}
	info.Status = constants.TokenStatusRevoked
	info.RevokedAt = &revokedAt
	d.records[jti] = info
	return true, nil
}

func (d *AccessTokenDAO) FindExpired(ctx context.Context, before time.Time) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for id, info := range d.records {
		if info.ExpiresAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *AccessTokenDAO) DeleteByJTI(ctx context.Context, jti string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, jti)
	return nil
}
