package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
)

// LedgerEntryEntity is the persistence shape of a credit ledger entry.
//
// uniq_award_per_project_recipient is the mechanism of record for the
// one-award-per-(project, recipient) rule; uniq_reversal_per_entry plays the
// same role for one-reversal-per-award. Both are partial indexes scoped by
// kind, so reversals and adjustments never collide with awards.
type LedgerEntryEntity struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID    uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null;index;uniqueIndex:uniq_award_per_project_recipient,where:kind = 'award'"`
	IssuerID       uuid.UUID  `gorm:"column:issuer_id;type:uuid;not null;index"`
	ProjectID      uuid.UUID  `gorm:"column:project_id;type:uuid;not null;uniqueIndex:uniq_award_per_project_recipient,where:kind = 'award'"`
	ContributionID uuid.UUID  `gorm:"column:contribution_id;type:uuid;not null;index"`
	RelatedEntryID *uuid.UUID `gorm:"column:related_entry_id;type:uuid;uniqueIndex:uniq_reversal_per_entry,where:kind = 'reversal'"`
	Amount         int64      `gorm:"column:amount;not null"`
	Kind           string     `gorm:"column:kind;not null;index"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime;index"`
}

func (LedgerEntryEntity) TableName() string {
	return "credit_ledger_entries"
}

func toLedgerEntryEntity(m *model.CreditLedgerEntry) *LedgerEntryEntity {
	if m == nil {
		return nil
	}
	return &LedgerEntryEntity{
		ID:             m.ID,
		RecipientID:    m.RecipientID,
		IssuerID:       m.IssuerID,
		ProjectID:      m.ProjectID,
		ContributionID: m.ContributionID,
		RelatedEntryID: m.RelatedEntryID,
		Amount:         m.Amount,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
	}
}

func toLedgerEntryModel(e *LedgerEntryEntity) *model.CreditLedgerEntry {
	if e == nil {
		return nil
	}
	return &model.CreditLedgerEntry{
		ID:             e.ID,
		RecipientID:    e.RecipientID,
		IssuerID:       e.IssuerID,
		ProjectID:      e.ProjectID,
		ContributionID: e.ContributionID,
		RelatedEntryID: e.RelatedEntryID,
		Amount:         e.Amount,
		Kind:           model.EntryKind(e.Kind),
		CreatedAt:      e.CreatedAt,
	}
}

func toLedgerEntryModels(entities []*LedgerEntryEntity) []*model.CreditLedgerEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.CreditLedgerEntry, len(entities))
	for i, e := range entities {
		models[i] = toLedgerEntryModel(e)
	}
	return models
}
