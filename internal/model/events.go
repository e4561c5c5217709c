package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the fire-and-forget notifications emitted by the engine.
type EventType string

const (
	EventContributionSubmitted EventType = "contribution_submitted"
	EventContributionAccepted  EventType = "contribution_accepted"
	EventContributionDeclined  EventType = "contribution_declined"
)

// ContributionEvent is the payload handed to the notification collaborator.
// It carries enough to compose a message without calling back into the engine.
type ContributionEvent struct {
	Type           EventType `json:"type"`
	ContributionID uuid.UUID `json:"contribution_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	ProjectTitle   string    `json:"project_title"`
	ContributorID  uuid.UUID `json:"contributor_id"`
	RecipientEmail string    `json:"recipient_email"`
	CreditAwarded  bool      `json:"credit_awarded"`
	OccurredAt     time.Time `json:"occurred_at"`
}
