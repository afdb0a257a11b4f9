// Package domain contains the welfare-scheme catalog: daily premiums and
// the fixed per-day commission components paid out of them.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Scheme is a welfare product priced per covered day. Amounts are minor
// units (cents). The four commission components are fixed per-day splits;
// their sum may never exceed the daily premium.
type Scheme struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Code         string       `gorm:"type:text;not null;uniqueIndex"`
	Name         string       `gorm:"type:text;not null"`
	Description  string       `gorm:"type:text"`
	DailyPremium int64        `gorm:"not null"`

	// Per-day commission splits, minor units.
	DelegateCommission    int64 `gorm:"not null;default:0"`
	CoordinatorCommission int64 `gorm:"not null;default:0"`
	SHAPortion            int64 `gorm:"not null;default:0"`
	OrgPortion            int64 `gorm:"not null;default:0"`

	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Scheme) TableName() string { return "schemes" }

// Validate enforces the catalog write invariants.
func (s Scheme) Validate() error {
	if s.Code == "" {
		return ErrInvalidScheme
	}
	if s.DailyPremium <= 0 {
		return ErrInvalidPremium
	}
	if s.DelegateCommission < 0 || s.CoordinatorCommission < 0 || s.SHAPortion < 0 || s.OrgPortion < 0 {
		return ErrInvalidCommissionSplit
	}
	total := s.DelegateCommission + s.CoordinatorCommission + s.SHAPortion + s.OrgPortion
	if total > s.DailyPremium {
		return ErrInvalidCommissionSplit
	}
	return nil
}

type Service interface {
	Create(ctx context.Context, scheme *Scheme) error
	Update(ctx context.Context, scheme *Scheme) error
	Get(ctx context.Context, id snowflake.ID) (*Scheme, error)
	// GetActive loads the scheme and rejects inactive ones; tx may be nil.
	GetActive(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Scheme, error)
	List(ctx context.Context) ([]Scheme, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Scheme, error)
	Insert(ctx context.Context, db *gorm.DB, scheme *Scheme) error
	Update(ctx context.Context, db *gorm.DB, scheme *Scheme) error
	List(ctx context.Context, db *gorm.DB) ([]Scheme, error)
}

var (
	ErrSchemeNotFound         = errors.New("scheme_not_found")
	ErrSchemeInactive         = errors.New("scheme_inactive")
	ErrInvalidScheme          = errors.New("invalid_scheme")
	ErrInvalidPremium         = errors.New("invalid_premium")
	ErrInvalidCommissionSplit = errors.New("invalid_commission_split")
	ErrSchemeCodeTaken        = errors.New("scheme_code_taken")
)
