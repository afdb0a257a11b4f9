package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, member_id, scheme_id, status, effective_date,
	delegate_id, coordinator_id, cancelled_at, created_at, updated_at`

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM subscriptions
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

func (r *repo) FindActiveByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM subscriptions
		 WHERE member_id = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		memberID,
		domain.SubscriptionStatusActive,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.SubscriptionStatus, cancelledAt *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		cancelledAt,
		time.Now().UTC(),
		id,
	).Error
}
