package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/audit/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Sink {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, eventType string, memberID snowflake.ID, before, after any) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		s.log.Warn("audit event without type dropped")
		return
	}

	event := domain.AuditEvent{
		ID:        s.genID.Generate(),
		EventType: eventType,
		MemberID:  memberID,
		Before:    marshal(before),
		After:     marshal(after),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		s.log.Warn("failed to write audit event",
			zap.String("event_type", eventType),
			zap.String("member_id", memberID.String()),
			zap.Error(err),
		)
	}
}

func marshal(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
