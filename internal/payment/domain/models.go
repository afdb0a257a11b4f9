// Package domain contains the payment record: the lifecycle of one
// funds-movement attempt and the entitlement window derived from it.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	gatewaydomain "github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodMpesa PaymentMethod = "mpesa"
	PaymentMethodCash  PaymentMethod = "cash"
)

// PaymentRecord is append-only and mutated only by the orchestrator. The
// coverage window is assigned at initiation and never recomputed. For
// first-time payers PendingSchemeID carries the target scheme until the
// subscription is created at completion.
type PaymentRecord struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	MemberID        snowflake.ID  `gorm:"not null;index"`
	SubscriptionID  *snowflake.ID `gorm:"index"`
	PendingSchemeID *snowflake.ID `gorm:""`
	Amount          int64         `gorm:"not null"`
	Status          PaymentStatus `gorm:"type:text;not null;index"`
	Method          PaymentMethod `gorm:"type:text;not null"`
	Reference       string        `gorm:"type:text;not null;uniqueIndex"`
	PayerPhone      string        `gorm:"type:text;not null"`
	Description     string        `gorm:"type:text"`

	CoverageStart time.Time `gorm:"not null"`
	CoverageEnd   time.Time `gorm:"not null"`
	CoverageDays  int       `gorm:"not null"`

	SettlementDate time.Time `gorm:"not null;index"`

	DelegateCommission    int64 `gorm:"not null;default:0"`
	CoordinatorCommission int64 `gorm:"not null;default:0"`
	SHAPortion            int64 `gorm:"not null;default:0"`
	OrgPortion            int64 `gorm:"not null;default:0"`

	CheckoutRequestID string `gorm:"type:text;index"`
	ReceiptNumber     string `gorm:"type:text"`
	TransactionID     string `gorm:"type:text"`

	FailureReason string     `gorm:"type:text"`
	InitiatedAt   time.Time  `gorm:"not null"`
	ProcessedAt   *time.Time `gorm:""`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payment_records" }

// Window is a convenience view of the record's coverage window.
func (p *PaymentRecord) Window() coveragedomain.Window {
	return coveragedomain.Window{
		StartDate: p.CoverageStart,
		EndDate:   p.CoverageEnd,
		Days:      p.CoverageDays,
	}
}

// InitiateRequest carries the inputs of a payment initiation. TargetID is
// the member's subscription for renewals; for first-time payers it is
// read as a scheme id.
type InitiateRequest struct {
	MemberID      snowflake.ID
	TargetID      snowflake.ID
	Amount        int64
	Phone         string
	Method        PaymentMethod
	RequestedDays int
	Description   string
}

type InitiateResponse struct {
	PaymentID       snowflake.ID          `json:"payment_id"`
	Reference       string                `json:"reference"`
	CorrelationID   string                `json:"correlation_id,omitempty"`
	CustomerMessage string                `json:"customer_message,omitempty"`
	Amount          int64                 `json:"amount"`
	Window          coveragedomain.Window `json:"window"`
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	// Complete is idempotent: an already-COMPLETED record is returned
	// unchanged. A FAILED record cannot be completed.
	Complete(ctx context.Context, paymentID snowflake.ID, receiptID, transactionID string) (*PaymentRecord, error)
	Fail(ctx context.Context, paymentID snowflake.ID, reason string) error
	Get(ctx context.Context, paymentID snowflake.ID) (*PaymentRecord, error)
	GetByReference(ctx context.Context, reference string) (*PaymentRecord, error)
	QueryGatewayStatus(ctx context.Context, paymentID snowflake.ID) (*gatewaydomain.StatusResult, error)
	// VerifyByReceipt confirms the receipt against the record's amount
	// and phone, then completes the payment. A mismatch leaves the
	// record PENDING for manual reconciliation.
	VerifyByReceipt(ctx context.Context, paymentID snowflake.ID, receiptID string) (*PaymentRecord, error)
	ListBySettlementDate(ctx context.Context, date time.Time) ([]PaymentRecord, error)
	// FindStalePending lists PENDING records older than threshold that
	// carry a gateway correlation id, for the reconciliation worker.
	FindStalePending(ctx context.Context, threshold time.Duration, limit int) ([]PaymentRecord, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentRecord, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*PaymentRecord, error)
	SetCorrelationID(ctx context.Context, db *gorm.DB, id snowflake.ID, correlationID string) error
	MarkCompleted(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, processedAt time.Time) error
	ListBySettlementDate(ctx context.Context, db *gorm.DB, date time.Time) ([]PaymentRecord, error)
	FindStalePending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]PaymentRecord, error)
}

var (
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrPaymentSystemLocked = errors.New("payment_system_locked")
	ErrPaymentNotPending   = errors.New("payment_not_pending")
	ErrMissingScheme       = errors.New("payment_missing_scheme")
	ErrNoCorrelationID     = errors.New("payment_no_correlation_id")
	ErrReceiptMismatch     = errors.New("receipt_mismatch")
)
