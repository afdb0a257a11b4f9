package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
	dbpkg "github.com/supa-modo/mwukenya-server-sub002/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateActive(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (*domain.Subscription, error) {
	if tx == nil {
		tx = s.db
	}

	existing, err := s.repo.FindActiveByMember(ctx, tx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrActiveExists
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		ID:            s.genID.Generate(),
		MemberID:      req.MemberID,
		SchemeID:      req.SchemeID,
		Status:        domain.SubscriptionStatusActive,
		EffectiveDate: req.EffectiveDate,
		DelegateID:    req.DelegateID,
		CoordinatorID: req.CoordinatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, tx, sub); err != nil {
		// The partial unique index on (member_id) WHERE ACTIVE backstops
		// the check above when two completions race past it.
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrActiveExists
		}
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("member_id", sub.MemberID.String()),
		zap.String("scheme_id", sub.SchemeID.String()),
		zap.Time("effective_date", sub.EffectiveDate),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) FindActiveByMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) (*domain.Subscription, error) {
	handle := tx
	if handle == nil {
		handle = s.db
	}
	return s.repo.FindActiveByMember(ctx, handle, memberID)
}

func (s *Service) Suspend(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, domain.SubscriptionStatusActive, domain.SubscriptionStatusSuspended)
}

func (s *Service) Reactivate(ctx context.Context, id snowflake.ID) error {
	return s.transition(ctx, id, domain.SubscriptionStatusSuspended, domain.SubscriptionStatusActive)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}
		if sub.Status == domain.SubscriptionStatusCancelled {
			return nil
		}
		now := s.clock.Now()
		return s.repo.UpdateStatus(ctx, tx, id, domain.SubscriptionStatusCancelled, &now)
	})
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, from, to domain.SubscriptionStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}
		if sub.Status != from {
			return domain.ErrInvalidTransition
		}
		if to == domain.SubscriptionStatusActive {
			// Reactivation must not break the one-ACTIVE invariant.
			active, err := s.repo.FindActiveByMember(ctx, tx, sub.MemberID)
			if err != nil {
				return err
			}
			if active != nil && active.ID != sub.ID {
				return domain.ErrActiveExists
			}
		}
		return s.repo.UpdateStatus(ctx, tx, id, to, sub.CancelledAt)
	})
}
