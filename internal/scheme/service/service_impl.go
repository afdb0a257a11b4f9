package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "github.com/supa-modo/mwukenya-server-sub002/pkg/db"

	"github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("scheme.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, scheme *domain.Scheme) error {
	scheme.Code = strings.TrimSpace(scheme.Code)
	scheme.Name = strings.TrimSpace(scheme.Name)
	if err := scheme.Validate(); err != nil {
		return err
	}

	if scheme.ID == 0 {
		scheme.ID = s.genID.Generate()
	}
	now := time.Now().UTC()
	scheme.CreatedAt = now
	scheme.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, scheme); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return domain.ErrSchemeCodeTaken
		}
		return err
	}
	s.log.Info("scheme created",
		zap.String("scheme_id", scheme.ID.String()),
		zap.String("code", scheme.Code),
		zap.Int64("daily_premium", scheme.DailyPremium),
	)
	return nil
}

func (s *Service) Update(ctx context.Context, scheme *domain.Scheme) error {
	existing, err := s.repo.Find(ctx, s.db, scheme.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrSchemeNotFound
	}
	scheme.Code = existing.Code
	if err := scheme.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, s.db, scheme)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Scheme, error) {
	scheme, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if scheme == nil {
		return nil, domain.ErrSchemeNotFound
	}
	return scheme, nil
}

func (s *Service) GetActive(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Scheme, error) {
	handle := tx
	if handle == nil {
		handle = s.db
	}
	scheme, err := s.repo.Find(ctx, handle, id)
	if err != nil {
		return nil, err
	}
	if scheme == nil {
		return nil, domain.ErrSchemeNotFound
	}
	if !scheme.Active {
		return nil, domain.ErrSchemeInactive
	}
	return scheme, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Scheme, error) {
	return s.repo.List(ctx, s.db)
}
