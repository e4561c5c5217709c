package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/pg"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateAward is returned when an award already exists for the
	// (project, recipient) pair.
	ErrDuplicateAward = errors.New("credit already awarded for this project and recipient")
	// ErrAlreadyReversed is returned when a reversal already references the
	// target entry.
	ErrAlreadyReversed = errors.New("ledger entry already reversed")
	// ErrEntryNotFound is returned when a ledger entry does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

const uniqueViolation = "23505"

// LedgerRepository is the append-only interface to credit_ledger_entries.
// There is deliberately no update or delete method on this type; database
// triggers reject UPDATE/DELETE on the table for anything that bypasses it.
type LedgerRepository struct {
	*pg.DB
}

func NewLedgerRepository(db *pg.DB) *LedgerRepository {
	return &LedgerRepository{
		db,
	}
}

// Create inserts one ledger entry. Unique-index violations are translated
// here, once, into domain errors; callers never see driver-level errors for
// constraint conflicts.
func (r *LedgerRepository) Create(ctx context.Context, entry *model.CreditLedgerEntry) (*model.CreditLedgerEntry, error) {
	entity := toLedgerEntryEntity(entry)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, translateUniqueViolation(err)
	}

	return toLedgerEntryModel(entity), nil
}

func (r *LedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CreditLedgerEntry, error) {
	var entity LedgerEntryEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return toLedgerEntryModel(&entity), nil
}

// ListByRecipient returns a user's entries, newest first.
func (r *LedgerRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.CreditLedgerEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	var entities []*LedgerEntryEntity
	err := r.Read(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toLedgerEntryModels(entities), nil
}

// SumByKind aggregates a user's ledger in one scan. Reversal rows carry
// negative amounts, so their sum is negated into a positive magnitude.
func (r *LedgerRepository) SumByKind(ctx context.Context, recipientID uuid.UUID) (*model.Balance, error) {
	var row struct {
		Awards      int64
		Reversals   int64
		Adjustments int64
	}

	err := r.Read(ctx).
		Model(&LedgerEntryEntity{}).
		Select(`
            COALESCE(SUM(CASE WHEN kind = 'award'      THEN amount ELSE 0 END), 0) AS awards,
            COALESCE(SUM(CASE WHEN kind = 'reversal'   THEN amount ELSE 0 END), 0) AS reversals,
            COALESCE(SUM(CASE WHEN kind = 'adjustment' THEN amount ELSE 0 END), 0) AS adjustments
        `).
		Where("recipient_id = ?", recipientID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &model.Balance{
		UserID:      recipientID,
		Total:       row.Awards + row.Reversals + row.Adjustments,
		Awards:      row.Awards,
		Reversals:   -row.Reversals,
		Adjustments: row.Adjustments,
	}, nil
}

// FindAwardForContribution returns the award written for a contribution, or
// ErrEntryNotFound when none was ever granted.
func (r *LedgerRepository) FindAwardForContribution(ctx context.Context, contributionID uuid.UUID) (*model.CreditLedgerEntry, error) {
	var entity LedgerEntryEntity
	err := r.Read(ctx).
		Where("contribution_id = ? AND kind = ?", contributionID, string(model.EntryKindAward)).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return toLedgerEntryModel(&entity), nil
}

// HasAward reports whether an award entry exists for the pair. This is an
// advisory pre-check only; the partial unique index decides races.
func (r *LedgerRepository) HasAward(ctx context.Context, projectID, recipientID uuid.UUID) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&LedgerEntryEntity{}).
		Where("project_id = ? AND recipient_id = ? AND kind = ?", projectID, recipientID, string(model.EntryKindAward)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasReversal reports whether a reversal already references entryID.
// Advisory pre-check; uniq_reversal_per_entry decides races.
func (r *LedgerRepository) HasReversal(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&LedgerEntryEntity{}).
		Where("related_entry_id = ? AND kind = ?", entryID, string(model.EntryKindReversal)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case "uniq_reversal_per_entry":
			return ErrAlreadyReversed
		default:
			return ErrDuplicateAward
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateAward
	}

	// sqlite, used by the test driver
	if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "related_entry_id") {
			return ErrAlreadyReversed
		}
		return ErrDuplicateAward
	}

	return err
}
