package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, member_id, subscription_id, pending_scheme_id, amount, status,
	method, reference, payer_phone, description,
	coverage_start, coverage_end, coverage_days, settlement_date,
	delegate_commission, coordinator_commission, sha_portion, org_portion,
	checkout_request_id, receipt_number, transaction_id,
	failure_reason, initiated_at, processed_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payment_records
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payment_records
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetCorrelationID(ctx context.Context, db *gorm.DB, id snowflake.ID, correlationID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET checkout_request_id = ?, updated_at = ?
		 WHERE id = ?`,
		correlationID,
		time.Now().UTC(),
		id,
	).Error
}

// MarkCompleted flips a PENDING record to COMPLETED. The status guard in
// the WHERE clause makes concurrent completions lose cleanly.
func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?, subscription_id = ?,
		     delegate_commission = ?, coordinator_commission = ?,
		     sha_portion = ?, org_portion = ?,
		     receipt_number = ?, transaction_id = ?,
		     processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.PaymentStatusCompleted,
		record.SubscriptionID,
		record.DelegateCommission,
		record.CoordinatorCommission,
		record.SHAPortion,
		record.OrgPortion,
		record.ReceiptNumber,
		record.TransactionID,
		record.ProcessedAt,
		time.Now().UTC(),
		record.ID,
		domain.PaymentStatusPending,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentNotPending
	}
	return nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, processedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?, failure_reason = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.PaymentStatusFailed,
		reason,
		processedAt,
		time.Now().UTC(),
		id,
		domain.PaymentStatusPending,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentNotPending
	}
	return nil
}

func (r *repo) ListBySettlementDate(ctx context.Context, db *gorm.DB, date time.Time) ([]domain.PaymentRecord, error) {
	var items []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payment_records
		 WHERE settlement_date = ? AND status = ?
		 ORDER BY processed_at ASC`,
		date,
		domain.PaymentStatusCompleted,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindStalePending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.PaymentRecord, error) {
	var items []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payment_records
		 WHERE status = ? AND initiated_at < ? AND checkout_request_id <> ''
		 ORDER BY initiated_at ASC
		 LIMIT ?`,
		domain.PaymentStatusPending,
		before,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
