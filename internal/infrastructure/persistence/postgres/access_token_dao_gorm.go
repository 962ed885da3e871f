package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
)

// GormAccessTokenDAO tracks access tokens through GORM. It works on both
// postgres and sqlite; timestamps are written in UTC so that sqlite's text
// comparison orders them correctly.
type GormAccessTokenDAO struct {
	db *gorm.DB
}

// NewGormAccessTokenDAO creates the DAO.
func NewGormAccessTokenDAO(db *gorm.DB) *GormAccessTokenDAO {
	return &GormAccessTokenDAO{db: db}
}

var _ repository.AccessTokenDAO = (*GormAccessTokenDAO)(nil)

// Create inserts the record; an existing JTI is left untouched and reported as false.
func (d *GormAccessTokenDAO) Create(ctx context.Context, info *models.AccessTokenInfo) (bool, error) {
	row := *info
	row.IssuedAt = row.IssuedAt.UTC()
	row.ExpiresAt = row.ExpiresAt.UTC()
	if row.RevokedAt != nil {
		at := row.RevokedAt.UTC()
		row.RevokedAt = &at
	}

	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert token info %s: %w", info.TokenID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FindByJTI returns the record or nil.
func (d *GormAccessTokenDAO) FindByJTI(ctx context.Context, jti string) (*models.AccessTokenInfo, error) {
	var info models.AccessTokenInfo
	if err := d.db.WithContext(ctx).Where("token_id = ?", jti).First(&info).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load token info %s: %w", jti, err)
	}
	return &info, nil
}

// MarkRevoked flips ACTIVE to REVOKED in one conditional UPDATE.
func (d *GormAccessTokenDAO) MarkRevoked(ctx context.Context, jti string, revokedAt time.Time) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&models.AccessTokenInfo{}).
		Where("token_id = ? AND status = ?", jti, constants.TokenStatusActive).
		Updates(map[string]interface{}{
			"status":     constants.TokenStatusRevoked,
			"revoked_at": revokedAt.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to revoke token info %s: %w", jti, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindExpired returns every JTI whose expiry is before the given instant.
func (d *GormAccessTokenDAO) FindExpired(ctx context.Context, before time.Time) ([]string, error) {
	var jtis []string
	err := d.db.WithContext(ctx).
		Model(&models.AccessTokenInfo{}).
		Where("expires_at < ?", before.UTC()).
		Order("expires_at").
		Pluck("token_id", &jtis).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired token infos: %w", err)
	}
	return jtis, nil
}

// DeleteByJTI removes the record.
func (d *GormAccessTokenDAO) DeleteByJTI(ctx context.Context, jti string) error {
	if err := d.db.WithContext(ctx).Delete(&models.AccessTokenInfo{}, "token_id = ?", jti).Error; err != nil {
		return fmt.Errorf("failed to delete token info %s: %w", jti, err)
	}
	return nil
}
