package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "github.com/supa-modo/mwukenya-server-sub002/pkg/db"

	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("coverage.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) FirstUnpaidDate(ctx context.Context, tx *gorm.DB, memberID, subscriptionID snowflake.ID) (*time.Time, error) {
	if tx == nil {
		tx = s.db
	}

	dates, err := s.paidDates(ctx, tx, memberID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}

	// The oldest missing day inside the paid range wins; otherwise the
	// frontier is the day after the last paid day.
	cursor := domain.NormalizeDate(dates[0])
	for _, d := range dates {
		d = domain.NormalizeDate(d)
		if d.After(cursor) {
			return &cursor, nil
		}
		cursor = d.AddDate(0, 0, 1)
	}
	return &cursor, nil
}

func (s *Service) Materialize(ctx context.Context, tx *gorm.DB, memberID, subscriptionID, paymentID snowflake.ID, window domain.Window, amount int64) error {
	if tx == nil {
		return domain.ErrInvalidWindow
	}
	if window.Days < 1 || window.EndDate.Before(window.StartDate) {
		return domain.ErrInvalidWindow
	}

	perDay := amount / int64(window.Days)
	remainder := amount - perDay*int64(window.Days)

	now := s.clock.Now()
	date := domain.NormalizeDate(window.StartDate)
	for i := 0; i < window.Days; i++ {
		rowAmount := perDay
		if i == window.Days-1 {
			// Remainder lands on the final day so the rows sum exactly
			// to the payment amount.
			rowAmount += remainder
		}
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO coverage_days (
				id, member_id, subscription_id, date, paid, payment_id, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			memberID,
			subscriptionID,
			date,
			true,
			paymentID,
			rowAmount,
			now,
		).Error
		if err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				s.log.Error("coverage day already paid, aborting completion",
					zap.String("member_id", memberID.String()),
					zap.String("payment_id", paymentID.String()),
					zap.Time("date", date),
				)
				return domain.ErrDayAlreadyPaid
			}
			return err
		}
		date = date.AddDate(0, 0, 1)
	}
	return nil
}

func (s *Service) RemoveUnpaid(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx).Exec(
		`DELETE FROM coverage_days
		 WHERE payment_id = ? AND paid = ?`,
		paymentID,
		false,
	).Error
}

func (s *Service) Status(ctx context.Context, memberID, subscriptionID snowflake.ID, from, to time.Time, dailyPremium int64) (*domain.Status, error) {
	from = domain.NormalizeDate(from)
	to = domain.NormalizeDate(to)
	if to.Before(from) {
		return nil, domain.ErrInvalidWindow
	}
	total := int(to.Sub(from).Hours()/24) + 1

	var rows []dateRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT date
		 FROM coverage_days
		 WHERE member_id = ? AND subscription_id = ? AND paid = ?
		   AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		memberID,
		subscriptionID,
		true,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	paidSet := make(map[time.Time]bool, len(rows))
	for _, row := range rows {
		paidSet[domain.NormalizeDate(row.Date)] = true
	}

	status := &domain.Status{
		TotalDays: total,
		PaidDays:  len(paidSet),
	}
	status.UnpaidDays = status.TotalDays - status.PaidDays
	if status.TotalDays > 0 {
		status.ComplianceRate = float64(status.PaidDays) / float64(status.TotalDays)
	}
	status.CurrentBalance = int64(status.UnpaidDays) * dailyPremium

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !paidSet[d] {
			first := d
			status.FirstUnpaidDate = &first
			break
		}
	}
	return status, nil
}

type dateRow struct {
	Date time.Time `gorm:"column:date"`
}

func (s *Service) paidDates(ctx context.Context, tx *gorm.DB, memberID, subscriptionID snowflake.ID) ([]time.Time, error) {
	var rows []dateRow
	err := tx.WithContext(ctx).Raw(
		`SELECT date
		 FROM coverage_days
		 WHERE member_id = ? AND subscription_id = ? AND paid = ?
		 ORDER BY date ASC`,
		memberID,
		subscriptionID,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.Date)
	}
	return dates, nil
}
