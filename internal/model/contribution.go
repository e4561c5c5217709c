package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContributionStatus is the lifecycle state of a contribution.
// pending is the only non-terminal state.
type ContributionStatus string

const (
	ContributionStatusPending  ContributionStatus = "pending"
	ContributionStatusAccepted ContributionStatus = "accepted"
	ContributionStatusDeclined ContributionStatus = "declined"
)

// Decision is the host's verdict on a pending contribution.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// TargetStatus maps a decision onto the status it produces.
func (d Decision) TargetStatus() ContributionStatus {
	if d == DecisionAccept {
		return ContributionStatusAccepted
	}
	return ContributionStatusDeclined
}

func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// Contribution is a submission from a contributor to a project.
//
// DecidedBy and DecidedAt are nil exactly while status is pending; both are
// set the moment the contribution leaves pending. The repository write paths
// and a database CHECK constraint both enforce the pairing.
type Contribution struct {
	ID            uuid.UUID          `json:"id"`
	ProjectID     uuid.UUID          `json:"project_id"`
	ContributorID uuid.UUID          `json:"contributor_id"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	Status        ContributionStatus `json:"status"`
	DecidedBy     *uuid.UUID         `json:"decided_by,omitempty"`
	DecidedAt     *time.Time         `json:"decided_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (c *Contribution) IsPending() bool {
	return c.Status == ContributionStatusPending
}

// SubmitRequest is the input for creating a contribution.
type SubmitRequest struct {
	ProjectID     uuid.UUID
	ContributorID uuid.UUID
	Title         string
	Body          string
}

func (r SubmitRequest) Validate() error {
	if r.ProjectID == uuid.Nil {
		return errors.New("project_id is required")
	}
	if r.ContributorID == uuid.Nil {
		return errors.New("contributor_id is required")
	}
	if r.Body == "" {
		return errors.New("body is required")
	}
	return nil
}

// ContributionFilter controls list queries.
type ContributionFilter struct {
	ProjectID     *uuid.UUID
	ContributorID *uuid.UUID
	Status        *ContributionStatus
	Limit         int // default 50
	Offset        int
}

// DecisionResult is what a decide call observably produced. CreditAwarded is
// false both for declines and for the accepted-but-award-already-exists case;
// CreditEntry is non-nil only when a fresh ledger row was written.
type DecisionResult struct {
	Contribution  *Contribution      `json:"contribution"`
	CreditEntry   *CreditLedgerEntry `json:"credit_entry,omitempty"`
	CreditAwarded bool               `json:"credit_awarded"`
}
