package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("member.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Member, error) {
	member, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

func (s *Service) RequireActive(ctx context.Context, id snowflake.ID) (*domain.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.Status != domain.MemberStatusActive {
		return nil, domain.ErrMemberInactive
	}
	return member, nil
}

func (s *Service) ResolveReferrers(ctx context.Context, id snowflake.ID) (domain.Referrers, error) {
	var out domain.Referrers

	member, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return out, err
	}
	if member == nil {
		return out, domain.ErrMemberNotFound
	}
	if member.ReferrerID == nil {
		return out, nil
	}
	out.Delegate = member.ReferrerID

	delegate, err := s.repo.Find(ctx, s.db, *member.ReferrerID)
	if err != nil {
		return out, err
	}
	if delegate == nil || delegate.ReferrerID == nil {
		// Broken or short chain; the payment still completes with the
		// levels that exist.
		return out, nil
	}
	out.Coordinator = delegate.ReferrerID
	return out, nil
}
