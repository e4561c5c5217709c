package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/pg"
)

// ModerationLogRepository is append-only, same contract as the ledger: no
// update or delete method exists, and the table triggers reject both.
type ModerationLogRepository struct {
	*pg.DB
}

func NewModerationLogRepository(db *pg.DB) *ModerationLogRepository {
	return &ModerationLogRepository{
		db,
	}
}

func (r *ModerationLogRepository) Create(ctx context.Context, log *model.ModerationLog) (*model.ModerationLog, error) {
	entity := toModerationLogEntity(log)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toModerationLogModel(entity), nil
}

// ListByTarget returns the audit trail for one moderated object, newest first.
func (r *ModerationLogRepository) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]*model.ModerationLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	var entities []*ModerationLogEntity
	err := r.Read(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toModerationLogModels(entities), nil
}
