package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
)

// ContributionEntity is the persistence shape of a contribution. The check
// constraint keeps the decision metadata honest: both fields are null while
// pending and both set once decided, moderation overrides included.
type ContributionEntity struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID     uuid.UUID  `gorm:"column:project_id;type:uuid;not null;index;uniqueIndex:uniq_active_submission,where:status <> 'declined'"`
	ContributorID uuid.UUID  `gorm:"column:contributor_id;type:uuid;not null;index;uniqueIndex:uniq_active_submission,where:status <> 'declined'"`
	Title         string     `gorm:"column:title"`
	Body          string     `gorm:"column:body;not null"`
	Status        string     `gorm:"column:status;not null;default:pending;index;check:chk_decision_metadata,(status = 'pending' AND decided_by IS NULL AND decided_at IS NULL) OR (status <> 'pending' AND decided_by IS NOT NULL AND decided_at IS NOT NULL)"`
	DecidedBy     *uuid.UUID `gorm:"column:decided_by;type:uuid"`
	DecidedAt     *time.Time `gorm:"column:decided_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ContributionEntity) TableName() string {
	return "contributions"
}

func toContributionEntity(m *model.Contribution) *ContributionEntity {
	if m == nil {
		return nil
	}
	return &ContributionEntity{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		ContributorID: m.ContributorID,
		Title:         m.Title,
		Body:          m.Body,
		Status:        string(m.Status),
		DecidedBy:     m.DecidedBy,
		DecidedAt:     m.DecidedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toContributionModel(e *ContributionEntity) *model.Contribution {
	if e == nil {
		return nil
	}
	return &model.Contribution{
		ID:            e.ID,
		ProjectID:     e.ProjectID,
		ContributorID: e.ContributorID,
		Title:         e.Title,
		Body:          e.Body,
		Status:        model.ContributionStatus(e.Status),
		DecidedBy:     e.DecidedBy,
		DecidedAt:     e.DecidedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toContributionModels(entities []*ContributionEntity) []*model.Contribution {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contribution, len(entities))
	for i, e := range entities {
		models[i] = toContributionModel(e)
	}
	return models
}
