// Package domain contains the member reference data the payment core
// depends on: existence/active checks and the sales-hierarchy linkage.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusInactive  MemberStatus = "INACTIVE"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

type MemberRole string

const (
	MemberRoleMember      MemberRole = "member"
	MemberRoleDelegate    MemberRole = "delegate"
	MemberRoleCoordinator MemberRole = "coordinator"
)

type Member struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	FirstName  string        `gorm:"type:text;not null"`
	LastName   string        `gorm:"type:text;not null"`
	Phone      string        `gorm:"type:text;not null;index"`
	NationalID string        `gorm:"type:text"`
	Status     MemberStatus  `gorm:"type:text;not null"`
	Role       MemberRole    `gorm:"type:text;not null;default:member"`
	ReferrerID *snowflake.ID `gorm:"index"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }

// Referrers is the resolved two-level sales hierarchy above a member.
// Either level may be nil when the chain is shorter.
type Referrers struct {
	Delegate    *snowflake.ID
	Coordinator *snowflake.ID
}

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Member, error)
	// RequireActive loads the member and rejects non-ACTIVE statuses.
	RequireActive(ctx context.Context, id snowflake.ID) (*Member, error)
	// ResolveReferrers walks at most two levels of referrer linkage.
	ResolveReferrers(ctx context.Context, id snowflake.ID) (Referrers, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
}

var (
	ErrMemberNotFound = errors.New("member_not_found")
	ErrMemberInactive = errors.New("member_inactive")
)
