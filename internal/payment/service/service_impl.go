package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/supa-modo/mwukenya-server-sub002/internal/audit/domain"
	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/commission"
	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	gatewaydomain "github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
	memberdomain "github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
	obsmetrics "github.com/supa-modo/mwukenya-server-sub002/internal/observability/metrics"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
	"github.com/supa-modo/mwukenya-server-sub002/internal/policy"
	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
	subscriptiondomain "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Policy          *policy.Holder
	Repo            paymentdomain.Repository
	MemberSvc       memberdomain.Service
	SchemeSvc       schemedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	CoverageSvc     coveragedomain.Service
	Gateway         gatewaydomain.Gateway
	AuditSink       auditdomain.Sink
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

// Service is the payment orchestrator. It owns the PENDING → COMPLETED /
// FAILED state machine and is the only writer of payment records.
type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	policy          *policy.Holder
	repo            paymentdomain.Repository
	memberSvc       memberdomain.Service
	schemeSvc       schemedomain.Service
	subscriptionSvc subscriptiondomain.Service
	coverageSvc     coveragedomain.Service
	gateway         gatewaydomain.Gateway
	auditSink       auditdomain.Sink
	metrics         *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		policy:          p.Policy,
		repo:            p.Repo,
		memberSvc:       p.MemberSvc,
		schemeSvc:       p.SchemeSvc,
		subscriptionSvc: p.SubscriptionSvc,
		coverageSvc:     p.CoverageSvc,
		gateway:         p.Gateway,
		auditSink:       p.AuditSink,
		metrics:         p.Metrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResponse, error) {
	now := s.clock.Now()
	pol := s.policy.Get()

	// Admission control: the settlement job needs a quiescent ledger
	// once a day. Retryable, not a client mistake.
	if pol.IsLocked(now) {
		s.recordInitiated("locked")
		return nil, paymentdomain.ErrPaymentSystemLocked
	}

	member, err := s.memberSvc.RequireActive(ctx, req.MemberID)
	if err != nil {
		s.recordInitiated("rejected")
		return nil, err
	}

	if req.Amount <= 0 {
		s.recordInitiated("rejected")
		return nil, paymentdomain.ErrInvalidAmount
	}

	// Renewal when an ACTIVE subscription exists; otherwise the target
	// id names the scheme a first-time payer is buying into.
	sub, err := s.subscriptionSvc.FindActiveByMember(ctx, nil, req.MemberID)
	if err != nil {
		return nil, err
	}

	var (
		scheme          *schemedomain.Scheme
		pendingSchemeID *snowflake.ID
		subscriptionID  *snowflake.ID
		frontier        *time.Time
	)
	if sub != nil {
		scheme, err = s.schemeSvc.GetActive(ctx, nil, sub.SchemeID)
		if err != nil {
			s.recordInitiated("rejected")
			return nil, err
		}
		subscriptionID = &sub.ID
		frontier, err = s.coverageSvc.FirstUnpaidDate(ctx, nil, req.MemberID, sub.ID)
		if err != nil {
			return nil, err
		}
	} else {
		scheme, err = s.schemeSvc.GetActive(ctx, nil, req.TargetID)
		if err != nil {
			s.recordInitiated("rejected")
			return nil, err
		}
		schemeID := scheme.ID
		pendingSchemeID = &schemeID
	}

	window, err := coveragedomain.ComputeWindow(
		req.Amount,
		scheme.DailyPremium,
		frontier,
		pol.Today(now),
		req.RequestedDays,
		pol.MaxCoverageDays,
	)
	if err != nil {
		s.recordInitiated("rejected")
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = paymentdomain.PaymentMethodMpesa
	}

	record := &paymentdomain.PaymentRecord{
		ID:              s.genID.Generate(),
		MemberID:        req.MemberID,
		SubscriptionID:  subscriptionID,
		PendingSchemeID: pendingSchemeID,
		Amount:          req.Amount,
		Status:          paymentdomain.PaymentStatusPending,
		Method:          method,
		Reference:       fmt.Sprintf("MWU-%d-%d", req.MemberID, now.UnixNano()),
		PayerPhone:      strings.TrimSpace(req.Phone),
		Description:     strings.TrimSpace(req.Description),
		CoverageStart:   window.StartDate,
		CoverageEnd:     window.EndDate,
		CoverageDays:    window.Days,
		SettlementDate:  pol.SettlementDate(now),
		// Fixed per-day splits; scaled to the amount at completion.
		DelegateCommission:    scheme.DelegateCommission,
		CoordinatorCommission: scheme.CoordinatorCommission,
		SHAPortion:            scheme.SHAPortion,
		OrgPortion:            scheme.OrgPortion,
		InitiatedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	resp := &paymentdomain.InitiateResponse{
		PaymentID: record.ID,
		Reference: record.Reference,
		Amount:    record.Amount,
		Window:    window,
	}

	push, err := s.gateway.InitiatePush(ctx, gatewaydomain.PushRequest{
		Phone:       record.PayerPhone,
		Amount:      record.Amount,
		MemberID:    record.MemberID,
		AccountRef:  record.Reference,
		Description: record.Description,
	})
	if err != nil {
		// The PENDING record stays for reconciliation; the gateway error
		// still surfaces to the caller.
		s.recordGateway("push", "error")
		s.log.Error("gateway push failed, pending record kept",
			zap.String("payment_id", record.ID.String()),
			zap.String("member_id", member.ID.String()),
			zap.Error(err),
		)
		s.recordInitiated("gateway_error")
		return nil, err
	}
	s.recordGateway("push", "ok")

	if err := s.repo.SetCorrelationID(ctx, s.db, record.ID, push.CorrelationID); err != nil {
		return nil, err
	}

	resp.CorrelationID = push.CorrelationID
	resp.CustomerMessage = push.CustomerMessage
	s.recordInitiated("ok")
	s.log.Info("payment initiated",
		zap.String("payment_id", record.ID.String()),
		zap.String("reference", record.Reference),
		zap.Int64("amount", record.Amount),
		zap.Int("days", window.Days),
		zap.Time("coverage_start", window.StartDate),
	)
	return resp, nil
}

func (s *Service) Complete(ctx context.Context, paymentID snowflake.ID, receiptID, transactionID string) (*paymentdomain.PaymentRecord, error) {
	var (
		completed  *paymentdomain.PaymentRecord
		before     paymentdomain.PaymentStatus
		noop       bool
		createdSub *subscriptiondomain.Subscription
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.Find(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if record == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		before = record.Status

		switch record.Status {
		case paymentdomain.PaymentStatusCompleted:
			// Duplicate callback; nothing to do.
			noop = true
			completed = record
			return nil
		case paymentdomain.PaymentStatusFailed:
			return paymentdomain.ErrPaymentNotPending
		}

		scheme, err := s.resolveScheme(ctx, tx, record)
		if err != nil {
			return err
		}

		if record.SubscriptionID == nil {
			sub, err := s.createSubscription(ctx, tx, record, scheme)
			if err != nil {
				return err
			}
			record.SubscriptionID = &sub.ID
			createdSub = sub
		}

		breakdown, err := commission.Compute(record.Amount, commission.Splits{
			DailyPremium: scheme.DailyPremium,
			Delegate:     scheme.DelegateCommission,
			Coordinator:  scheme.CoordinatorCommission,
			SHA:          scheme.SHAPortion,
		})
		if err != nil {
			return err
		}
		record.DelegateCommission = breakdown.Delegate
		record.CoordinatorCommission = breakdown.Coordinator
		record.SHAPortion = breakdown.SHA
		record.OrgPortion = breakdown.Org

		now := s.clock.Now()
		record.Status = paymentdomain.PaymentStatusCompleted
		record.ProcessedAt = &now
		record.ReceiptNumber = strings.TrimSpace(receiptID)
		record.TransactionID = strings.TrimSpace(transactionID)

		if err := s.repo.MarkCompleted(ctx, tx, record); err != nil {
			return err
		}

		if err := s.coverageSvc.Materialize(ctx, tx,
			record.MemberID, *record.SubscriptionID, record.ID,
			record.Window(), record.Amount,
		); err != nil {
			return err
		}

		completed = record
		return nil
	})
	if err != nil {
		s.log.Error("payment completion aborted, record left pending",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if noop {
		s.log.Info("duplicate completion ignored",
			zap.String("payment_id", paymentID.String()),
		)
		return completed, nil
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentCompleted(completed.CoverageDays)
	}
	// Audit only after commit: the sink writes on its own connection, and
	// a rolled-back completion must leave no trace.
	if createdSub != nil {
		s.auditSink.Record(ctx, "subscription.created", completed.MemberID, nil, map[string]any{
			"subscription_id": createdSub.ID.String(),
			"scheme_id":       createdSub.SchemeID.String(),
			"effective_date":  createdSub.EffectiveDate.Format("2006-01-02"),
			"payment_id":      completed.ID.String(),
		})
	}
	s.auditSink.Record(ctx, "payment.completed", completed.MemberID,
		map[string]any{"status": before},
		map[string]any{
			"status":         completed.Status,
			"payment_id":     completed.ID.String(),
			"reference":      completed.Reference,
			"amount":         completed.Amount,
			"coverage_days":  completed.CoverageDays,
			"receipt_number": completed.ReceiptNumber,
		},
	)
	s.log.Info("payment completed",
		zap.String("payment_id", completed.ID.String()),
		zap.String("reference", completed.Reference),
		zap.Int64("amount", completed.Amount),
		zap.Int("coverage_days", completed.CoverageDays),
	)
	return completed, nil
}

func (s *Service) resolveScheme(ctx context.Context, tx *gorm.DB, record *paymentdomain.PaymentRecord) (*schemedomain.Scheme, error) {
	if record.SubscriptionID != nil {
		sub, err := s.subscriptionSvc.Get(ctx, *record.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return s.schemeSvc.GetActive(ctx, tx, sub.SchemeID)
	}
	if record.PendingSchemeID == nil {
		return nil, paymentdomain.ErrMissingScheme
	}
	return s.schemeSvc.GetActive(ctx, tx, *record.PendingSchemeID)
}

func (s *Service) createSubscription(ctx context.Context, tx *gorm.DB, record *paymentdomain.PaymentRecord, scheme *schemedomain.Scheme) (*subscriptiondomain.Subscription, error) {
	// The member must still be valid at completion time; money for a
	// deactivated member needs manual review, not a silent subscription.
	if _, err := s.memberSvc.RequireActive(ctx, record.MemberID); err != nil {
		return nil, err
	}

	referrers, err := s.memberSvc.ResolveReferrers(ctx, record.MemberID)
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptionSvc.CreateActive(ctx, tx, subscriptiondomain.CreateRequest{
		MemberID:      record.MemberID,
		SchemeID:      scheme.ID,
		EffectiveDate: record.CoverageStart,
		DelegateID:    referrers.Delegate,
		CoordinatorID: referrers.Coordinator,
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Fail(ctx context.Context, paymentID snowflake.ID, reason string) error {
	var (
		memberID snowflake.ID
		noop     bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.Find(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if record == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		memberID = record.MemberID

		switch record.Status {
		case paymentdomain.PaymentStatusFailed:
			noop = true
			return nil
		case paymentdomain.PaymentStatusCompleted:
			return paymentdomain.ErrPaymentNotPending
		}

		if err := s.repo.MarkFailed(ctx, tx, paymentID, strings.TrimSpace(reason), s.clock.Now()); err != nil {
			return err
		}
		// Completion never pre-reserves ledger rows, so this only cleans
		// up if some other path ever did.
		return s.coverageSvc.RemoveUnpaid(ctx, tx, paymentID)
	})
	if err != nil {
		return err
	}
	if noop {
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentFailed()
	}
	s.auditSink.Record(ctx, "payment.failed", memberID, nil, map[string]any{
		"payment_id": paymentID.String(),
		"reason":     reason,
	})
	s.log.Warn("payment failed",
		zap.String("payment_id", paymentID.String()),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.PaymentRecord, error) {
	record, err := s.repo.Find(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return record, nil
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*paymentdomain.PaymentRecord, error) {
	record, err := s.repo.FindByReference(ctx, s.db, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return record, nil
}

func (s *Service) QueryGatewayStatus(ctx context.Context, paymentID snowflake.ID) (*gatewaydomain.StatusResult, error) {
	record, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if record.CheckoutRequestID == "" {
		return nil, paymentdomain.ErrNoCorrelationID
	}
	status, err := s.gateway.QueryStatus(ctx, record.CheckoutRequestID)
	if err != nil {
		s.recordGateway("query", "error")
		return nil, err
	}
	s.recordGateway("query", "ok")
	return status, nil
}

func (s *Service) VerifyByReceipt(ctx context.Context, paymentID snowflake.ID, receiptID string) (*paymentdomain.PaymentRecord, error) {
	record, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if record.Status == paymentdomain.PaymentStatusCompleted {
		return record, nil
	}
	if record.Status == paymentdomain.PaymentStatusFailed {
		return nil, paymentdomain.ErrPaymentNotPending
	}

	verification, err := s.gateway.VerifyReceipt(ctx, strings.TrimSpace(receiptID), record.Amount, record.PayerPhone)
	if err != nil {
		s.recordGateway("verify", "error")
		return nil, err
	}
	s.recordGateway("verify", "ok")

	if !verification.IsValid {
		// Never guess with money: a mismatched receipt stays PENDING
		// until a human reconciles it.
		s.log.Error("receipt verification mismatch",
			zap.String("payment_id", record.ID.String()),
			zap.String("receipt_id", receiptID),
			zap.Int64("expected_amount", record.Amount),
			zap.Int64("reported_amount", verification.Amount),
			zap.String("description", verification.Description),
		)
		return nil, paymentdomain.ErrReceiptMismatch
	}

	return s.Complete(ctx, paymentID, receiptID, verification.TransactionID)
}

func (s *Service) ListBySettlementDate(ctx context.Context, date time.Time) ([]paymentdomain.PaymentRecord, error) {
	return s.repo.ListBySettlementDate(ctx, s.db, coveragedomain.NormalizeDate(date))
}

func (s *Service) FindStalePending(ctx context.Context, threshold time.Duration, limit int) ([]paymentdomain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	before := s.clock.Now().Add(-threshold)
	return s.repo.FindStalePending(ctx, s.db, before, limit)
}

func (s *Service) recordInitiated(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentInitiated(outcome)
	}
}

func (s *Service) recordGateway(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordGatewayCall(operation, outcome)
	}
}
