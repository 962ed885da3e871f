package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/authz/pkg/constants"
)

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	EventID   string                   `json:"event_id" gorm:"primaryKey;size:64"`
	EventType constants.AuditEventType `json:"event_type" gorm:"size:64;index"`
	ClientID  string                   `json:"client_id" gorm:"size:128;index"`
	Subject   string                   `json:"subject,omitempty" gorm:"size:255"`
	JTI       string                   `json:"jti,omitempty" gorm:"size:64;index"`
	GrantType string                   `json:"grant_type,omitempty" gorm:"size:32"`
	Success   bool                     `json:"success"`
	Reason    string                   `json:"reason,omitempty" gorm:"size:64"`
	Metadata  map[string]string        `json:"metadata,omitempty" gorm:"serializer:json"`
	Timestamp time.Time                `json:"timestamp" gorm:"index"`
}

// TableName pins the table name for GORM
func (AuditEvent) TableName() string {
	return "audit_events"
}

// NewAuditEvent creates a new audit event stamped with a fresh ID and the current time.
func NewAuditEvent(eventType constants.AuditEventType, clientID string, success bool) AuditEvent {
	return AuditEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		ClientID:  clientID,
		Success:   success,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	}
}

// WithMeta sets a metadata entry and returns the event for chaining.
func (e AuditEvent) WithMeta(key, value string) AuditEvent {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
	return e
}
