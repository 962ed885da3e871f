// Package audit implements the AuditService interface over GORM and Kafka.
package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
)

// GormAuditService stores audit events in the audit_events table.
type GormAuditService struct {
	db *gorm.DB
}

// NewGormAuditService creates the service.
func NewGormAuditService(db *gorm.DB) *GormAuditService {
	return &GormAuditService{db: db}
}

var _ service.AuditService = (*GormAuditService)(nil)

// LogEvent saves an AuditEvent to the database.
func (s *GormAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	return s.db.WithContext(ctx).Create(&event).Error
}

// FindByJTI returns the trail of one token, oldest first.
func (s *GormAuditService) FindByJTI(ctx context.Context, jti string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	if err := s.db.WithContext(ctx).Where("jti = ?", jti).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load audit trail for %s: %w", jti, err)
	}
	return events, nil
}
