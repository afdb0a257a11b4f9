package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var item domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name, phone, national_id, status, role,
			referrer_id, created_at, updated_at
		 FROM members
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
