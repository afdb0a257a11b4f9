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

	auditdomain "github.com/supa-modo/mwukenya-server-sub002/internal/audit/domain"
	auditservice "github.com/supa-modo/mwukenya-server-sub002/internal/audit/service"
	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/commission"
	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	coverageservice "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/service"
	gatewaydomain "github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
	memberdomain "github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
	memberrepository "github.com/supa-modo/mwukenya-server-sub002/internal/member/repository"
	memberservice "github.com/supa-modo/mwukenya-server-sub002/internal/member/service"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
	paymentrepository "github.com/supa-modo/mwukenya-server-sub002/internal/payment/repository"
	"github.com/supa-modo/mwukenya-server-sub002/internal/policy"
	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
	schemerepository "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/repository"
	schemeservice "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/service"
	subscriptiondomain "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
	subscriptionrepository "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/repository"
	subscriptionservice "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/service"
)

// stubGateway scripts the mobile-money side of a payment.
type stubGateway struct {
	pushErr   error
	pushCalls int
	status    *gatewaydomain.StatusResult
	verify    *gatewaydomain.ReceiptVerification
	verifyErr error
}

func (g *stubGateway) InitiatePush(_ context.Context, _ gatewaydomain.PushRequest) (*gatewaydomain.PushResult, error) {
	g.pushCalls++
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	return &gatewaydomain.PushResult{
		CorrelationID:   fmt.Sprintf("ws_CO_%d", g.pushCalls),
		CustomerMessage: "Enter your PIN to complete the payment",
	}, nil
}

func (g *stubGateway) QueryStatus(_ context.Context, _ string) (*gatewaydomain.StatusResult, error) {
	if g.status == nil {
		return nil, gatewaydomain.ErrGatewayUnavailable
	}
	return g.status, nil
}

func (g *stubGateway) VerifyReceipt(_ context.Context, _ string, _ int64, _ string) (*gatewaydomain.ReceiptVerification, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verify == nil {
		return nil, gatewaydomain.ErrGatewayUnavailable
	}
	return g.verify, nil
}

type harness struct {
	db            *gorm.DB
	clk           *clock.FakeClock
	gw            *stubGateway
	svc           paymentdomain.Service
	subSvc        subscriptiondomain.Service
	memberID      snowflake.ID
	delegateID    snowflake.ID
	coordinatorID snowflake.ID
	schemeID      snowflake.ID
}

// baseTime is 12:00 in Nairobi: outside the lock window and before the
// settlement cutoff.
var baseTime = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&schemedomain.Scheme{},
		&subscriptiondomain.Subscription{},
		&coveragedomain.CoverageDay{},
		&paymentdomain.PaymentRecord{},
		&auditdomain.AuditEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(baseTime)
	gw := &stubGateway{}

	memberSvc := memberservice.NewService(memberservice.Params{DB: db, Log: log, Repo: memberrepository.Provide()})
	schemeSvc := schemeservice.NewService(schemeservice.Params{DB: db, Log: log, GenID: node, Repo: schemerepository.Provide()})
	subSvc := subscriptionservice.NewService(subscriptionservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: subscriptionrepository.Provide()})
	covSvc := coverageservice.NewService(coverageservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	sink := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node})

	h := &harness{
		db:     db,
		clk:    clk,
		gw:     gw,
		subSvc: subSvc,
	}

	coordinator := &memberdomain.Member{
		ID: node.Generate(), FirstName: "Grace", LastName: "Njeri",
		Phone: "254700000001", Status: memberdomain.MemberStatusActive,
		Role: memberdomain.MemberRoleCoordinator,
	}
	require.NoError(t, db.Create(coordinator).Error)
	delegate := &memberdomain.Member{
		ID: node.Generate(), FirstName: "Peter", LastName: "Otieno",
		Phone: "254700000002", Status: memberdomain.MemberStatusActive,
		Role: memberdomain.MemberRoleDelegate, ReferrerID: &coordinator.ID,
	}
	require.NoError(t, db.Create(delegate).Error)
	member := &memberdomain.Member{
		ID: node.Generate(), FirstName: "Amina", LastName: "Wanjiru",
		Phone: "254711000003", Status: memberdomain.MemberStatusActive,
		Role: memberdomain.MemberRoleMember, ReferrerID: &delegate.ID,
	}
	require.NoError(t, db.Create(member).Error)
	h.coordinatorID = coordinator.ID
	h.delegateID = delegate.ID
	h.memberID = member.ID

	scheme := &schemedomain.Scheme{
		Code: "boda-daily", Name: "Boda Boda Daily Cover",
		DailyPremium:          20,
		DelegateCommission:    2,
		CoordinatorCommission: 1,
		SHAPortion:            12,
		OrgPortion:            5,
		Active:                true,
	}
	require.NoError(t, schemeSvc.Create(context.Background(), scheme))
	h.schemeID = scheme.ID

	h.svc = NewService(Params{
		DB:              db,
		Log:             log,
		GenID:           node,
		Clock:           clk,
		Policy:          policy.NewStaticHolder(policy.Default()),
		Repo:            paymentrepository.Provide(),
		MemberSvc:       memberSvc,
		SchemeSvc:       schemeSvc,
		SubscriptionSvc: subSvc,
		CoverageSvc:     covSvc,
		Gateway:         gw,
		AuditSink:       sink,
	})
	return h
}

func (h *harness) initiate(t *testing.T, amount int64) *paymentdomain.InitiateResponse {
	t.Helper()
	resp, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		TargetID: h.schemeID,
		Amount:   amount,
		Phone:    "254711000003",
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) coverageRows(t *testing.T) []coveragedomain.CoverageDay {
	t.Helper()
	var rows []coveragedomain.CoverageDay
	require.NoError(t, h.db.Order("date ASC").Find(&rows).Error)
	return rows
}

func TestInitiateRejectedDuringLockWindow(t *testing.T) {
	h := newHarness(t)
	// 21:30 in Nairobi, inside the settlement lock.
	h.clk.Set(time.Date(2024, time.January, 10, 18, 30, 0, 0, time.UTC))

	_, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		TargetID: h.schemeID,
		Amount:   60,
		Phone:    "254711000003",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentSystemLocked)
	assert.Zero(t, h.gw.pushCalls)

	var count int64
	require.NoError(t, h.db.Model(&paymentdomain.PaymentRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitiateRejectsInactiveMember(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&memberdomain.Member{}).
		Where("id = ?", h.memberID).
		Update("status", memberdomain.MemberStatusSuspended).Error)

	_, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		TargetID: h.schemeID,
		Amount:   60,
		Phone:    "254711000003",
	})
	assert.ErrorIs(t, err, memberdomain.ErrMemberInactive)
}

func TestInitiateCreatesPendingRecord(t *testing.T) {
	h := newHarness(t)

	resp := h.initiate(t, 60)
	assert.Equal(t, int64(60), resp.Amount)
	assert.Equal(t, 3, resp.Window.Days)
	assert.Equal(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), resp.Window.StartDate)
	assert.Equal(t, time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC), resp.Window.EndDate)
	assert.Equal(t, "ws_CO_1", resp.CorrelationID)
	assert.NotEmpty(t, resp.CustomerMessage)

	record, err := h.svc.Get(context.Background(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusPending, record.Status)
	assert.Equal(t, paymentdomain.PaymentMethodMpesa, record.Method)
	assert.Equal(t, "ws_CO_1", record.CheckoutRequestID)
	require.NotNil(t, record.PendingSchemeID)
	assert.Equal(t, h.schemeID, *record.PendingSchemeID)
	assert.Nil(t, record.SubscriptionID)
	// Per-day splits until completion scales them.
	assert.Equal(t, int64(2), record.DelegateCommission)
	assert.Equal(t, int64(1), record.CoordinatorCommission)
	assert.Equal(t, int64(12), record.SHAPortion)
	assert.Equal(t, int64(5), record.OrgPortion)
	// Before the 18:00 cutoff the record settles same-day.
	assert.Equal(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), record.SettlementDate)
}

func TestCompleteProvisionsFirstTimeSubscriber(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)

	record, err := h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, record.Status)
	assert.Equal(t, "SAH8Q1XKLM", record.ReceiptNumber)
	require.NotNil(t, record.ProcessedAt)
	require.NotNil(t, record.SubscriptionID)

	// Splits scaled from per-day to the paid amount, org takes residual.
	assert.Equal(t, int64(6), record.DelegateCommission)
	assert.Equal(t, int64(3), record.CoordinatorCommission)
	assert.Equal(t, int64(36), record.SHAPortion)
	assert.Equal(t, int64(15), record.OrgPortion)

	sub, err := h.subSvc.Get(context.Background(), *record.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, h.schemeID, sub.SchemeID)
	assert.Equal(t, record.CoverageStart, sub.EffectiveDate)
	require.NotNil(t, sub.DelegateID)
	assert.Equal(t, h.delegateID, *sub.DelegateID)
	require.NotNil(t, sub.CoordinatorID)
	assert.Equal(t, h.coordinatorID, *sub.CoordinatorID)

	rows := h.coverageRows(t)
	require.Len(t, rows, 3)
	var total int64
	for _, row := range rows {
		assert.True(t, row.Paid)
		assert.Equal(t, record.ID, row.PaymentID)
		total += row.Amount
	}
	assert.Equal(t, int64(60), total)

	var audits int64
	require.NoError(t, h.db.Model(&auditdomain.AuditEvent{}).
		Where("event_type = ?", "subscription.created").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestCompleteRollbackLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)

	// Splits corrupted after initiation make the commission scaling
	// fail inside the completion transaction.
	require.NoError(t, h.db.Exec(
		`UPDATE schemes SET sha_portion = ? WHERE id = ?`, 1000, h.schemeID,
	).Error)

	_, err := h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	assert.ErrorIs(t, err, commission.ErrInvalidSplits)

	// The rollback undoes the lazily created subscription, and no audit
	// event survives a completion that never committed.
	record, err := h.svc.Get(context.Background(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusPending, record.Status)
	assert.Nil(t, record.SubscriptionID)

	var subs int64
	require.NoError(t, h.db.Model(&subscriptiondomain.Subscription{}).Count(&subs).Error)
	assert.Zero(t, subs)

	var audits int64
	require.NoError(t, h.db.Model(&auditdomain.AuditEvent{}).Count(&audits).Error)
	assert.Zero(t, audits)

	assert.Empty(t, h.coverageRows(t))
}

func TestCompleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)

	first, err := h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	require.NoError(t, err)

	second, err := h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, second.Status)

	assert.Len(t, h.coverageRows(t), 3)
}

func TestRenewalBackfillsFromLedgerFrontier(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)
	_, err := h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	require.NoError(t, err)

	// Ten days later the member pays again. Coverage resumes at the
	// frontier, Jan 13, not at today.
	h.clk.Set(time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC))
	renewal, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		Amount:   40,
		Phone:    "254711000003",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, renewal.Window.Days)
	assert.Equal(t, time.Date(2024, time.January, 13, 0, 0, 0, 0, time.UTC), renewal.Window.StartDate)
	assert.Equal(t, time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC), renewal.Window.EndDate)

	record, err := h.svc.Complete(context.Background(), renewal.PaymentID, "SAH8Q2ABCD", "SAH8Q2ABCD")
	require.NoError(t, err)

	// The existing subscription is reused, never duplicated.
	var subs int64
	require.NoError(t, h.db.Model(&subscriptiondomain.Subscription{}).Count(&subs).Error)
	assert.Equal(t, int64(1), subs)

	sub, err := h.subSvc.FindActiveByMember(context.Background(), nil, h.memberID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.NotNil(t, record.SubscriptionID)
	assert.Equal(t, sub.ID, *record.SubscriptionID)

	assert.Len(t, h.coverageRows(t), 5)
}

func TestFailMarksRecordAndWritesNoCoverage(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)

	require.NoError(t, h.svc.Fail(context.Background(), resp.PaymentID, "cancelled by payer"))

	record, err := h.svc.Get(context.Background(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusFailed, record.Status)
	assert.Equal(t, "cancelled by payer", record.FailureReason)
	assert.Empty(t, h.coverageRows(t))

	// No subscription appears for a failed first payment.
	var subs int64
	require.NoError(t, h.db.Model(&subscriptiondomain.Subscription{}).Count(&subs).Error)
	assert.Zero(t, subs)

	// Failing again is a no-op; completing a failed record is refused.
	require.NoError(t, h.svc.Fail(context.Background(), resp.PaymentID, "cancelled by payer"))
	_, err = h.svc.Complete(context.Background(), resp.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotPending)
}

func TestInitiateKeepsPendingRecordOnPushFailure(t *testing.T) {
	h := newHarness(t)
	h.gw.pushErr = gatewaydomain.ErrGatewayUnavailable

	_, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		TargetID: h.schemeID,
		Amount:   60,
		Phone:    "254711000003",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)

	var records []paymentdomain.PaymentRecord
	require.NoError(t, h.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, paymentdomain.PaymentStatusPending, records[0].Status)
	assert.Empty(t, records[0].CheckoutRequestID)

	// Without a correlation id the record cannot be queried at the
	// gateway and the reconciler skips it.
	_, err = h.svc.QueryGatewayStatus(context.Background(), records[0].ID)
	assert.ErrorIs(t, err, paymentdomain.ErrNoCorrelationID)

	stale, err := h.svc.FindStalePending(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestFindStalePendingHonorsThreshold(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)

	stale, err := h.svc.FindStalePending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	h.clk.Advance(10 * time.Minute)
	stale, err = h.svc.FindStalePending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, resp.PaymentID, stale[0].ID)
}

func TestVerifyByReceiptMismatchStaysPending(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)
	h.gw.verify = &gatewaydomain.ReceiptVerification{
		IsValid:     false,
		Amount:      40,
		Description: "amount mismatch",
	}

	_, err := h.svc.VerifyByReceipt(context.Background(), resp.PaymentID, "SAH8Q1XKLM")
	assert.ErrorIs(t, err, paymentdomain.ErrReceiptMismatch)

	record, err := h.svc.Get(context.Background(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusPending, record.Status)
	assert.Empty(t, h.coverageRows(t))
}

func TestVerifyByReceiptCompletesOnMatch(t *testing.T) {
	h := newHarness(t)
	resp := h.initiate(t, 60)
	h.gw.verify = &gatewaydomain.ReceiptVerification{
		IsValid:       true,
		Amount:        60,
		Phone:         "254711000003",
		TransactionID: "SAH8Q1XKLM",
	}

	record, err := h.svc.VerifyByReceipt(context.Background(), resp.PaymentID, "SAH8Q1XKLM")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, record.Status)
	assert.Equal(t, "SAH8Q1XKLM", record.TransactionID)
	assert.Len(t, h.coverageRows(t), 3)

	// A verified record short-circuits on repeat calls.
	again, err := h.svc.VerifyByReceipt(context.Background(), resp.PaymentID, "SAH8Q1XKLM")
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)
}

func TestListBySettlementDateBucketsAfterCutoff(t *testing.T) {
	h := newHarness(t)
	early := h.initiate(t, 60)
	_, err := h.svc.Complete(context.Background(), early.PaymentID, "SAH8Q1XKLM", "SAH8Q1XKLM")
	require.NoError(t, err)

	// 19:00 in Nairobi is past the 18:00 cutoff; the renewal lands in
	// the next day's settlement run.
	h.clk.Set(time.Date(2024, time.January, 10, 16, 0, 0, 0, time.UTC))
	late, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MemberID: h.memberID,
		Amount:   20,
		Phone:    "254711000003",
	})
	require.NoError(t, err)
	_, err = h.svc.Complete(context.Background(), late.PaymentID, "SAH8Q2ABCD", "SAH8Q2ABCD")
	require.NoError(t, err)

	// Only completed records are listed, bucketed by settlement date.
	sameDay, err := h.svc.ListBySettlementDate(context.Background(), time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, sameDay, 1)
	assert.Equal(t, early.PaymentID, sameDay[0].ID)

	nextDay, err := h.svc.ListBySettlementDate(context.Background(), time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, nextDay, 1)
	assert.Equal(t, late.PaymentID, nextDay[0].ID)

	// A still-PENDING record never appears in a settlement bucket.
	pending := h.initiate(t, 20)
	again, err := h.svc.ListBySettlementDate(context.Background(), time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.NotEqual(t, pending.PaymentID, again[0].ID)
}

func TestGetUnknownPayment(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Get(context.Background(), snowflake.ID(404))
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotFound)
}
