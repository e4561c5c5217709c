package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/internal/repository"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/interfacehive/credit-engine/pkg/prom"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("caller may not decide this contribution")
	ErrInvalidDecision  = errors.New("decision must be accept or decline")
	ErrInvalidState     = errors.New("contribution is not in a state that allows this")
	ErrProjectClosed    = errors.New("project is not accepting contributions")
	ErrOwnProject       = errors.New("cannot contribute to your own project")
	ErrAlreadySubmitted = errors.New("contributor already submitted to this project")
	ErrUserBanned       = errors.New("user account is not active")
)

type ContributionRepository interface {
	Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, to model.ContributionStatus, decidedBy uuid.UUID, decidedAt time.Time) (bool, error)
	ForceDecline(ctx context.Context, id uuid.UUID, moderatorID uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, f model.ContributionFilter) ([]*model.Contribution, int64, error)
	HasActiveSubmission(ctx context.Context, projectID, contributorID uuid.UUID) (bool, error)
}

type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ProjectStatus) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// TransactionManager is the unit-of-work boundary. Everything called with the
// ctx passed to fn joins one database transaction.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreditAwarder is the slice of the credit service the state machine needs.
type CreditAwarder interface {
	Award(ctx context.Context, req model.AwardRequest) (*model.CreditLedgerEntry, error)
}

// EventPublisher hands decision events to the notification pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ContributionEvent) error
}

type ContributionService struct {
	contributionRepo ContributionRepository
	projectRepo      ProjectRepository
	userRepo         UserRepository
	awarder          CreditAwarder
	tx               TransactionManager
	publisher        EventPublisher
}

func NewContributionService(contributionRepo ContributionRepository, projectRepo ProjectRepository, userRepo UserRepository, awarder CreditAwarder, tx TransactionManager, publisher EventPublisher) *ContributionService {
	return &ContributionService{
		contributionRepo: contributionRepo,
		projectRepo:      projectRepo,
		userRepo:         userRepo,
		awarder:          awarder,
		tx:               tx,
		publisher:        publisher,
	}
}

// Submit creates a pending contribution. One active (non-declined) submission
// per contributor per project; the partial unique index backs the pre-check.
func (s *ContributionService) Submit(ctx context.Context, req model.SubmitRequest) (*model.Contribution, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contributor, err := s.userRepo.FindByID(ctx, req.ContributorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load contributor: %w", err)
	}
	if !contributor.IsActive {
		return nil, ErrUserBanned
	}

	project, err := s.projectRepo.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.IsOpen() {
		return nil, ErrProjectClosed
	}
	if project.IsHostedBy(req.ContributorID) {
		return nil, ErrOwnProject
	}

	exists, err := s.contributionRepo.HasActiveSubmission(ctx, req.ProjectID, req.ContributorID)
	if err != nil {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}
	if exists {
		return nil, ErrAlreadySubmitted
	}

	created, err := s.contributionRepo.Create(ctx, &model.Contribution{
		ProjectID:     req.ProjectID,
		ContributorID: req.ContributorID,
		Title:         req.Title,
		Body:          req.Body,
		Status:        model.ContributionStatusPending,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySubmitted) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("create contribution: %w", err)
	}

	s.publish(ctx, model.EventContributionSubmitted, created, project, contributor.Email, false)

	return created, nil
}

// Decide records the host's verdict on a pending contribution, exactly once.
//
// The transition is a compare-and-swap on status='pending'; the loser of a
// race re-reads and either echoes the recorded decision (same verdict, no new
// ledger row) or gets ErrInvalidState. Accepting awards one credit in the
// same transaction as the transition, with one deliberate exception: a
// duplicate-award conflict keeps the accept and simply reports
// CreditAwarded=false, because the recipient already holds credit for the
// project. Any other award failure rolls the whole decision back.
func (s *ContributionService) Decide(ctx context.Context, contributionID uuid.UUID, decider model.Principal, decision model.Decision) (*model.DecisionResult, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}

	contribution, err := s.contributionRepo.FindByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load contribution: %w", err)
	}

	project, err := s.projectRepo.FindByID(ctx, contribution.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	if !project.IsHostedBy(decider.UserID) && !decider.Admin {
		return nil, ErrUnauthorized
	}

	target := decision.TargetStatus()

	if !contribution.IsPending() {
		if contribution.Status == target {
			// repeated identical decision, echo without side effects
			return &model.DecisionResult{Contribution: contribution, CreditAwarded: false}, nil
		}
		return nil, ErrInvalidState
	}

	result := &model.DecisionResult{}
	applied := false
	now := time.Now().UTC()

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.contributionRepo.TransitionFromPending(ctx, contributionID, target, decider.UserID, now)
		if err != nil {
			return fmt.Errorf("transition contribution: %w", err)
		}

		if !ok {
			// lost the race, see what the winner recorded
			current, err := s.contributionRepo.FindByID(ctx, contributionID)
			if err != nil {
				return fmt.Errorf("reload contribution: %w", err)
			}
			if current.Status == target {
				result.Contribution = current
				return nil
			}
			return ErrInvalidState
		}

		applied = true
		contribution.Status = target
		contribution.DecidedBy = &decider.UserID
		contribution.DecidedAt = &now
		result.Contribution = contribution

		if decision != model.DecisionAccept {
			return nil
		}

		entry, err := s.awarder.Award(ctx, model.AwardRequest{
			RecipientID:    contribution.ContributorID,
			IssuerID:       decider.UserID,
			ProjectID:      contribution.ProjectID,
			ContributionID: contribution.ID,
			Amount:         1,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateAward) {
				// the accept stands, the recipient already has credit here
				return nil
			}
			return fmt.Errorf("award credit: %w", err)
		}

		result.CreditEntry = entry
		result.CreditAwarded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		prom.IncCounterVec(prom.SystemContributions, prom.MetricDecisionsTotal, string(decision))

		eventType := model.EventContributionDeclined
		if decision == model.DecisionAccept {
			eventType = model.EventContributionAccepted
		}
		s.publishToContributor(ctx, eventType, result.Contribution, project, result.CreditAwarded)
	}

	return result, nil
}

func (s *ContributionService) Get(ctx context.Context, id uuid.UUID) (*model.Contribution, error) {
	c, err := s.contributionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ContributionService) List(ctx context.Context, f model.ContributionFilter) ([]*model.Contribution, int64, error) {
	return s.contributionRepo.List(ctx, f)
}

func (s *ContributionService) publishToContributor(ctx context.Context, eventType model.EventType, c *model.Contribution, p *model.Project, creditAwarded bool) {
	email := ""
	if contributor, err := s.userRepo.FindByID(ctx, c.ContributorID); err == nil {
		email = contributor.Email
	}
	s.publish(ctx, eventType, c, p, email, creditAwarded)
}

// publish is fire-and-forget: the decision is already committed, a failed
// notification only gets logged and counted.
func (s *ContributionService) publish(ctx context.Context, eventType model.EventType, c *model.Contribution, p *model.Project, email string, creditAwarded bool) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, &model.ContributionEvent{
		Type:           eventType,
		ContributionID: c.ID,
		ProjectID:      p.ID,
		ProjectTitle:   p.Title,
		ContributorID:  c.ContributorID,
		RecipientEmail: email,
		CreditAwarded:  creditAwarded,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		prom.IncCounter(prom.SystemEvents, prom.MetricPublishFailures)
		logger.Warn("event publish failed", "type", eventType, "contribution_id", c.ID, "error", err)
	}
}
