package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("project not found")
)

// ProjectEntity mirrors the slice of the projects table the engine reads.
// Project CRUD itself lives with the project collaborator; the only write
// this service ever performs is the moderation status flip.
type ProjectEntity struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	HostUserID uuid.UUID `gorm:"column:host_user_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	Status     string    `gorm:"column:status;not null;default:open;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProjectEntity) TableName() string {
	return "projects"
}

type ProjectRepository struct {
	*pg.DB
}

func NewProjectRepository(db *pg.DB) *ProjectRepository {
	return &ProjectRepository{
		db,
	}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) (*model.Project, error) {
	entity := &ProjectEntity{
		ID:         p.ID,
		HostUserID: p.HostUserID,
		Title:      p.Title,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.ProjectStatusOpen)
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toProjectModel(entity), nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var entity ProjectEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return toProjectModel(&entity), nil
}

func (r *ProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ProjectStatus) error {
	result := r.Write(ctx).
		Model(&ProjectEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func toProjectModel(e *ProjectEntity) *model.Project {
	if e == nil {
		return nil
	}
	return &model.Project{
		ID:         e.ID,
		HostUserID: e.HostUserID,
		Title:      e.Title,
		Status:     model.ProjectStatus(e.Status),
		CreatedAt:  e.CreatedAt,
	}
}
