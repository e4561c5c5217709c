package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
)

type ModerationLogEntity struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Action            string    `gorm:"column:action;not null;index"`
	ModeratorID       uuid.UUID `gorm:"column:moderator_id;type:uuid;not null;index"`
	ModeratorEmail    string    `gorm:"column:moderator_email;not null"`
	TargetType        string    `gorm:"column:target_type;not null;index:idx_modlog_target"`
	TargetID          uuid.UUID `gorm:"column:target_id;type:uuid;not null;index:idx_modlog_target"`
	TargetDescription string    `gorm:"column:target_description"`
	Reason            string    `gorm:"column:reason;not null"`
	IPAddress         string    `gorm:"column:ip_address"`
	UserAgent         string    `gorm:"column:user_agent"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (ModerationLogEntity) TableName() string {
	return "moderation_logs"
}

func toModerationLogEntity(m *model.ModerationLog) *ModerationLogEntity {
	if m == nil {
		return nil
	}
	return &ModerationLogEntity{
		ID:                m.ID,
		Action:            string(m.Action),
		ModeratorID:       m.ModeratorID,
		ModeratorEmail:    m.ModeratorEmail,
		TargetType:        m.TargetType,
		TargetID:          m.TargetID,
		TargetDescription: m.TargetDescription,
		Reason:            m.Reason,
		IPAddress:         m.IPAddress,
		UserAgent:         m.UserAgent,
		CreatedAt:         m.CreatedAt,
	}
}

func toModerationLogModel(e *ModerationLogEntity) *model.ModerationLog {
	if e == nil {
		return nil
	}
	return &model.ModerationLog{
		ID:                e.ID,
		Action:            model.ModerationAction(e.Action),
		ModeratorID:       e.ModeratorID,
		ModeratorEmail:    e.ModeratorEmail,
		TargetType:        e.TargetType,
		TargetID:          e.TargetID,
		TargetDescription: e.TargetDescription,
		Reason:            e.Reason,
		IPAddress:         e.IPAddress,
		UserAgent:         e.UserAgent,
		CreatedAt:         e.CreatedAt,
	}
}

func toModerationLogModels(entities []*ModerationLogEntity) []*model.ModerationLog {
	if entities == nil {
		return nil
	}
	models := make([]*model.ModerationLog, len(entities))
	for i, e := range entities {
		models[i] = toModerationLogModel(e)
	}
	return models
}
