package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Scheme, error) {
	var item domain.Scheme
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, description, daily_premium,
			delegate_commission, coordinator_commission, sha_portion, org_portion,
			active, created_at, updated_at
		 FROM schemes
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

func (r *repo) Insert(ctx context.Context, db *gorm.DB, scheme *domain.Scheme) error {
	// Explicit column list so a false active flag is written as-is
	// instead of falling back to the column default.
	return db.WithContext(ctx).Exec(
		`INSERT INTO schemes (
			id, code, name, description, daily_premium,
			delegate_commission, coordinator_commission, sha_portion, org_portion,
			active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scheme.ID,
		scheme.Code,
		scheme.Name,
		scheme.Description,
		scheme.DailyPremium,
		scheme.DelegateCommission,
		scheme.CoordinatorCommission,
		scheme.SHAPortion,
		scheme.OrgPortion,
		scheme.Active,
		scheme.CreatedAt,
		scheme.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, scheme *domain.Scheme) error {
	scheme.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE schemes
		 SET name = ?, description = ?, daily_premium = ?,
		     delegate_commission = ?, coordinator_commission = ?,
		     sha_portion = ?, org_portion = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		scheme.Name,
		scheme.Description,
		scheme.DailyPremium,
		scheme.DelegateCommission,
		scheme.CoordinatorCommission,
		scheme.SHAPortion,
		scheme.OrgPortion,
		scheme.Active,
		scheme.UpdatedAt,
		scheme.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Scheme, error) {
	var items []domain.Scheme
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, description, daily_premium,
			delegate_commission, coordinator_commission, sha_portion, org_portion,
			active, created_at, updated_at
		 FROM schemes
		 ORDER BY code`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
