package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/pg"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrContributionNotFound is returned when a contribution does not exist.
	ErrContributionNotFound = errors.New("contribution not found")
	// ErrAlreadySubmitted is returned when the contributor already has a
	// non-declined submission on the project.
	ErrAlreadySubmitted = errors.New("contributor already submitted to this project")
)

type ContributionRepository struct {
	*pg.DB
}

func NewContributionRepository(db *pg.DB) *ContributionRepository {
	return &ContributionRepository{
		db,
	}
}

func (r *ContributionRepository) Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error) {
	entity := toContributionEntity(c)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.ContributionStatusPending)
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, translateSubmitViolation(err)
	}

	return toContributionModel(entity), nil
}

func (r *ContributionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error) {
	var entity ContributionEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return toContributionModel(&entity), nil
}

// TransitionFromPending is the compare-and-swap that decides races: the
// UPDATE only matches while status is still pending, so of two concurrent
// deciders exactly one sees rowsAffected == 1. The loser re-reads and either
// echoes the recorded decision or reports a state conflict.
func (r *ContributionRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, to model.ContributionStatus, decidedBy uuid.UUID, decidedAt time.Time) (bool, error) {
	result := r.Write(ctx).
		Model(&ContributionEntity{}).
		Where("id = ? AND status = ?", id, string(model.ContributionStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"decided_by": decidedBy,
			"decided_at": decidedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ForceDecline moves a contribution to declined regardless of its current
// status. Moderation only; the decision metadata still gets set so the
// pending/decided pairing invariant holds.
func (r *ContributionRepository) ForceDecline(ctx context.Context, id uuid.UUID, moderatorID uuid.UUID, at time.Time) (bool, error) {
	result := r.Write(ctx).
		Model(&ContributionEntity{}).
		Where("id = ? AND status <> ?", id, string(model.ContributionStatusDeclined)).
		Updates(map[string]interface{}{
			"status":     string(model.ContributionStatusDeclined),
			"decided_by": moderatorID,
			"decided_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ContributionRepository) List(ctx context.Context, f model.ContributionFilter) ([]*model.Contribution, int64, error) {
	q := r.Read(ctx).Model(&ContributionEntity{})

	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.ContributorID != nil {
		q = q.Where("contributor_id = ?", *f.ContributorID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ContributionEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toContributionModels(entities), total, nil
}

// HasActiveSubmission is the advisory pre-check behind uniq_active_submission.
func (r *ContributionRepository) HasActiveSubmission(ctx context.Context, projectID, contributorID uuid.UUID) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&ContributionEntity{}).
		Where("project_id = ? AND contributor_id = ? AND status <> ?", projectID, contributorID, string(model.ContributionStatusDeclined)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func translateSubmitViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAlreadySubmitted
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadySubmitted
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadySubmitted
	}
	return err
}
