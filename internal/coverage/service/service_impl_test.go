package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CoverageDay{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk}).(*Service)
	return svc, db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMaterializeRowsSumToAmount(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := snowflake.ID(100)
	subID := snowflake.ID(200)
	paymentID := snowflake.ID(300)

	window := domain.Window{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 3), Days: 3}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Materialize(ctx, tx, memberID, subID, paymentID, window, 70)
	}))

	var rows []domain.CoverageDay
	require.NoError(t, db.Order("date asc").Find(&rows).Error)
	require.Len(t, rows, 3)

	var total int64
	for _, row := range rows {
		assert.True(t, row.Paid)
		assert.Equal(t, paymentID, row.PaymentID)
		total += row.Amount
	}
	assert.Equal(t, int64(70), total)
	// Truncation remainder lands on the final day.
	assert.Equal(t, int64(23), rows[0].Amount)
	assert.Equal(t, int64(23), rows[1].Amount)
	assert.Equal(t, int64(24), rows[2].Amount)
}

func TestMaterializeRejectsDuplicateDay(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := snowflake.ID(100)
	subID := snowflake.ID(200)

	window := domain.Window{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 2), Days: 2}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(300), window, 40)
	}))

	// A second payment claiming an overlapping day aborts its transaction
	// and leaves no partial rows behind.
	overlap := domain.Window{StartDate: day(2024, time.January, 2), EndDate: day(2024, time.January, 3), Days: 2}
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(301), overlap, 40)
	})
	assert.ErrorIs(t, err, domain.ErrDayAlreadyPaid)

	var count int64
	require.NoError(t, db.Model(&domain.CoverageDay{}).Where("payment_id = ?", snowflake.ID(301)).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFirstUnpaidDateEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	frontier, err := svc.FirstUnpaidDate(context.Background(), nil, snowflake.ID(100), snowflake.ID(200))
	require.NoError(t, err)
	assert.Nil(t, frontier)
}

func TestFirstUnpaidDateFindsOldestGap(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := snowflake.ID(100)
	subID := snowflake.ID(200)

	// Paid: Jan 1-2 and Jan 5; the frontier is the gap at Jan 3.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(300),
			domain.Window{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 2), Days: 2}, 40); err != nil {
			return err
		}
		return svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(301),
			domain.Window{StartDate: day(2024, time.January, 5), EndDate: day(2024, time.January, 5), Days: 1}, 20)
	}))

	frontier, err := svc.FirstUnpaidDate(ctx, nil, memberID, subID)
	require.NoError(t, err)
	require.NotNil(t, frontier)
	assert.Equal(t, day(2024, time.January, 3), *frontier)
}

func TestFirstUnpaidDateContiguousLedger(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := snowflake.ID(100)
	subID := snowflake.ID(200)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(300),
			domain.Window{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 3), Days: 3}, 60)
	}))

	frontier, err := svc.FirstUnpaidDate(ctx, nil, memberID, subID)
	require.NoError(t, err)
	require.NotNil(t, frontier)
	assert.Equal(t, day(2024, time.January, 4), *frontier)
}

func TestStatusAggregation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := snowflake.ID(100)
	subID := snowflake.ID(200)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Materialize(ctx, tx, memberID, subID, snowflake.ID(300),
			domain.Window{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 2), Days: 2}, 40)
	}))

	status, err := svc.Status(ctx, memberID, subID, day(2024, time.January, 1), day(2024, time.January, 4), 20)
	require.NoError(t, err)

	assert.Equal(t, 4, status.TotalDays)
	assert.Equal(t, 2, status.PaidDays)
	assert.Equal(t, 2, status.UnpaidDays)
	assert.InDelta(t, 0.5, status.ComplianceRate, 0.001)
	assert.Equal(t, int64(40), status.CurrentBalance)
	require.NotNil(t, status.FirstUnpaidDate)
	assert.Equal(t, day(2024, time.January, 3), *status.FirstUnpaidDate)
}

func TestStatusRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Status(context.Background(), snowflake.ID(100), snowflake.ID(200),
		day(2024, time.January, 5), day(2024, time.January, 1), 20)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}
