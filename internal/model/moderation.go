package model

import (
	"time"

	"github.com/google/uuid"
)

// ModerationAction enumerates the administrative actions that produce an
// audit record.
type ModerationAction string

const (
	ActionSoftDeleteProject      ModerationAction = "soft_delete_project"
	ActionSoftDeleteContribution ModerationAction = "soft_delete_contribution"
	ActionBanUser                ModerationAction = "ban_user"
	ActionUnbanUser              ModerationAction = "unban_user"
	ActionReverseCredit          ModerationAction = "reverse_credit"
)

// ModerationLog is one immutable audit record. Like ledger entries, rows are
// insert-only; the moderator's email is denormalized so the trail survives
// account deletion.
type ModerationLog struct {
	ID                uuid.UUID        `json:"id"`
	Action            ModerationAction `json:"action"`
	ModeratorID       uuid.UUID        `json:"moderator_id"`
	ModeratorEmail    string           `json:"moderator_email"`
	TargetType        string           `json:"target_type"`
	TargetID          uuid.UUID        `json:"target_id"`
	TargetDescription string           `json:"target_description"`
	Reason            string           `json:"reason"`
	IPAddress         string           `json:"ip_address,omitempty"`
	UserAgent         string           `json:"user_agent,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// RequestMeta carries transport-level metadata into audit records.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ReversalResult is returned by a credit reversal.
type ReversalResult struct {
	OriginalID uuid.UUID `json:"original_id"`
	ReversalID uuid.UUID `json:"reversal_id"`
	Amount     int64     `json:"amount"`
}
