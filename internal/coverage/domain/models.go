// Package domain contains the day-granularity coverage ledger: one row
// per (member, subscription, calendar date) the member is entitled to.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CoverageDay is a single day of entitlement. Rows are written only when
// a payment completes and are never rewritten; the composite key keeps a
// day from being paid twice by different payments.
type CoverageDay struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	MemberID       snowflake.ID `gorm:"not null;uniqueIndex:ux_coverage_member_sub_date,priority:1"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:ux_coverage_member_sub_date,priority:2"`
	Date           time.Time    `gorm:"not null;uniqueIndex:ux_coverage_member_sub_date,priority:3"`
	Paid           bool         `gorm:"not null;default:false"`
	PaymentID      snowflake.ID `gorm:"not null;index"`
	Amount         int64        `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CoverageDay) TableName() string { return "coverage_days" }

// Window is the inclusive date range a payment entitles the member to.
type Window struct {
	StartDate time.Time
	EndDate   time.Time
	Days      int
}

// Status is the read-only aggregation served to clients and field staff.
type Status struct {
	TotalDays       int        `json:"total_days"`
	PaidDays        int        `json:"paid_days"`
	UnpaidDays      int        `json:"unpaid_days"`
	ComplianceRate  float64    `json:"compliance_rate"`
	FirstUnpaidDate *time.Time `json:"first_unpaid_date,omitempty"`
	CurrentBalance  int64      `json:"current_balance"`
}

type Service interface {
	// FirstUnpaidDate returns the ledger frontier for the subscription:
	// the oldest gap between paid days when one exists, else the day
	// after the last paid day. Nil when the ledger is empty.
	FirstUnpaidDate(ctx context.Context, tx *gorm.DB, memberID, subscriptionID snowflake.ID) (*time.Time, error)
	// Materialize writes one paid row per window day inside tx. The rows
	// sum exactly to amount; a duplicate day aborts the transaction.
	Materialize(ctx context.Context, tx *gorm.DB, memberID, subscriptionID, paymentID snowflake.ID, window Window, amount int64) error
	// RemoveUnpaid deletes unpaid placeholder rows a failed payment may
	// have reserved. Materialization is completion-only, so this is a
	// defensive cleanup and usually a no-op.
	RemoveUnpaid(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) error
	Status(ctx context.Context, memberID, subscriptionID snowflake.ID, from, to time.Time, dailyPremium int64) (*Status, error)
}

var (
	ErrAmountTooLow      = errors.New("amount_too_low")
	ErrDaysLimitExceeded = errors.New("days_limit_exceeded")
	ErrInvalidWindow     = errors.New("invalid_window")
	ErrDayAlreadyPaid    = errors.New("coverage_day_already_paid")
)
