// Package domain contains persistence models for welfare-scheme
// subscriptions.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription binds a member to a scheme. The referrer linkage is
// resolved once, at creation time, and frozen on the row so commission
// attribution stays stable even if the hierarchy changes later.
type Subscription struct {
	ID            snowflake.ID       `gorm:"primaryKey"`
	MemberID      snowflake.ID       `gorm:"not null;index"`
	SchemeID      snowflake.ID       `gorm:"not null;index"`
	Status        SubscriptionStatus `gorm:"type:text;not null"`
	EffectiveDate time.Time          `gorm:"not null"`
	DelegateID    *snowflake.ID      `gorm:""`
	CoordinatorID *snowflake.ID      `gorm:""`
	CancelledAt   *time.Time         `gorm:""`
	CreatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// CreateRequest carries the inputs for the lazy create performed inside
// payment completion.
type CreateRequest struct {
	MemberID      snowflake.ID
	SchemeID      snowflake.ID
	EffectiveDate time.Time
	DelegateID    *snowflake.ID
	CoordinatorID *snowflake.ID
}

type Service interface {
	// CreateActive creates an ACTIVE subscription inside tx, enforcing the
	// one-ACTIVE-per-member invariant.
	CreateActive(ctx context.Context, tx *gorm.DB, req CreateRequest) (*Subscription, error)
	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	// FindActiveByMember returns nil when the member has no active
	// subscription; tx may be nil.
	FindActiveByMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) (*Subscription, error)
	Suspend(ctx context.Context, id snowflake.ID) error
	Reactivate(ctx context.Context, id snowflake.ID) error
	Cancel(ctx context.Context, id snowflake.ID) error
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindActiveByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*Subscription, error)
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status SubscriptionStatus, cancelledAt *time.Time) error
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrActiveExists         = errors.New("active_subscription_exists")
	ErrInvalidTransition    = errors.New("invalid_subscription_transition")
)
