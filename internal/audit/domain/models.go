// Package domain defines the audit sink the payment core emits into.
// Recording is fire-and-forget: a sink failure never fails the caller.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AuditEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	EventType string         `gorm:"type:text;not null;index"`
	MemberID  snowflake.ID   `gorm:"not null;index"`
	Before    datatypes.JSON `gorm:"type:jsonb"`
	After     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditEvent) TableName() string { return "audit_events" }

type Sink interface {
	Record(ctx context.Context, eventType string, memberID snowflake.ID, before, after any)
}
