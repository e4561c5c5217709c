package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryKind is a closed enumeration of ledger entry kinds.
type EntryKind string

const (
	EntryKindAward      EntryKind = "award"
	EntryKindReversal   EntryKind = "reversal"
	EntryKindAdjustment EntryKind = "adjustment"
)

// CreditLedgerEntry is one immutable row of the credit ledger. Entries are
// never updated or deleted; an award is negated only by a later reversal
// entry that references it through RelatedEntryID.
//
// At most one award entry may exist per (project, recipient) pair; a partial
// unique index on the table is the mechanism of record for that rule.
type CreditLedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	IssuerID       uuid.UUID  `json:"issuer_id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	ContributionID uuid.UUID  `json:"contribution_id"`
	RelatedEntryID *uuid.UUID `json:"related_entry_id,omitempty"`
	Amount         int64      `json:"amount"`
	Kind           EntryKind  `json:"kind"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AwardRequest is the input for awarding credit.
type AwardRequest struct {
	RecipientID    uuid.UUID
	IssuerID       uuid.UUID
	ProjectID      uuid.UUID
	ContributionID uuid.UUID
	Amount         int64
}

func (r AwardRequest) Validate() error {
	if r.RecipientID == uuid.Nil {
		return errors.New("recipient_id is required")
	}
	if r.IssuerID == uuid.Nil {
		return errors.New("issuer_id is required")
	}
	if r.ProjectID == uuid.Nil {
		return errors.New("project_id is required")
	}
	if r.ContributionID == uuid.Nil {
		return errors.New("contribution_id is required")
	}
	return nil
}

// Balance is derived from a fresh scan of the ledger on every read; there is
// no stored balance column anywhere, so it cannot drift. Reversal rows carry
// negative amounts; the Reversals component below reports the positive
// magnitude, so Total = Awards - Reversals + Adjustments always holds.
type Balance struct {
	UserID      uuid.UUID `json:"user_id"`
	Total       int64     `json:"total"`
	Awards      int64     `json:"awards"`
	Reversals   int64     `json:"reversals"`
	Adjustments int64     `json:"adjustments"`
}
