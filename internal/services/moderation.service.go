package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/internal/repository"
	"github.com/interfacehive/credit-engine/pkg/prom"
)

var (
	ErrNotAdmin        = errors.New("administrator privileges required")
	ErrInvalidReason   = errors.New("reason must be at least 10 characters")
	ErrNotReversible   = errors.New("only award entries can be reversed")
	ErrAlreadyReversed = errors.New("ledger entry already reversed")
	ErrSelfModeration  = errors.New("cannot moderate your own account")
	ErrTargetAdmin     = errors.New("cannot moderate another administrator")
)

const minReasonLen = 10

type ModerationLogRepository interface {
	Create(ctx context.Context, log *model.ModerationLog) (*model.ModerationLog, error)
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]*model.ModerationLog, error)
}

// ModerationService executes administrative actions. Every action writes an
// immutable audit record in the same transaction as its effect, so an action
// without a trail (or a trail without the action) cannot exist.
type ModerationService struct {
	ledgerRepo       LedgerRepository
	contributionRepo ContributionRepository
	projectRepo      ProjectRepository
	userRepo         UserRepository
	logRepo          ModerationLogRepository
	tx               TransactionManager
}

func NewModerationService(ledgerRepo LedgerRepository, contributionRepo ContributionRepository, projectRepo ProjectRepository, userRepo UserRepository, logRepo ModerationLogRepository, tx TransactionManager) *ModerationService {
	return &ModerationService{
		ledgerRepo:       ledgerRepo,
		contributionRepo: contributionRepo,
		projectRepo:      projectRepo,
		userRepo:         userRepo,
		logRepo:          logRepo,
		tx:               tx,
	}
}

// ReverseCredit negates one award by appending a reversal entry that
// references it. The original row is never touched; one reversal per award,
// enforced by a partial unique index for anything the pre-check misses.
func (s *ModerationService) ReverseCredit(ctx context.Context, entryID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) (*model.ReversalResult, error) {
	if !moderator.Admin {
		return nil, ErrNotAdmin
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	entry, err := s.ledgerRepo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load ledger entry: %w", err)
	}
	if entry.Kind != model.EntryKindAward {
		return nil, ErrNotReversible
	}

	reversed, err := s.ledgerRepo.HasReversal(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing reversal: %w", err)
	}
	if reversed {
		return nil, ErrAlreadyReversed
	}

	var reversal *model.CreditLedgerEntry
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		reversal, err = s.ledgerRepo.Create(ctx, &model.CreditLedgerEntry{
			RecipientID:    entry.RecipientID,
			IssuerID:       moderator.UserID,
			ProjectID:      entry.ProjectID,
			ContributionID: entry.ContributionID,
			RelatedEntryID: &entry.ID,
			Amount:         -entry.Amount,
			Kind:           model.EntryKindReversal,
		})
		if err != nil {
			if errors.Is(err, repository.ErrAlreadyReversed) {
				return ErrAlreadyReversed
			}
			return fmt.Errorf("create reversal entry: %w", err)
		}

		return s.audit(ctx, model.ActionReverseCredit, moderator, "credit", entry.ID,
			fmt.Sprintf("reversal of %d credit for recipient %s", entry.Amount, entry.RecipientID), reason, meta)
	})
	if err != nil {
		return nil, err
	}

	prom.IncCounter(prom.SystemModeration, prom.MetricReversalsTotal)

	return &model.ReversalResult{
		OriginalID: entry.ID,
		ReversalID: reversal.ID,
		Amount:     entry.Amount,
	}, nil
}

// SoftDeleteContribution forces a contribution to declined regardless of its
// current state. The ledger is left alone; a granted award needs its own
// explicit reversal.
func (s *ModerationService) SoftDeleteContribution(ctx context.Context, id uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) (*model.Contribution, error) {
	if !moderator.Admin {
		return nil, ErrNotAdmin
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	contribution, err := s.contributionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load contribution: %w", err)
	}
	if contribution.Status == model.ContributionStatusDeclined {
		return nil, ErrInvalidState
	}

	// a retained award is noted in the trail so reviewers see what still stands
	description := contribution.Title
	if award, err := s.ledgerRepo.FindAwardForContribution(ctx, id); err == nil {
		description = fmt.Sprintf("%s (award %s retained)", contribution.Title, award.ID)
	}

	now := time.Now().UTC()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.contributionRepo.ForceDecline(ctx, id, moderator.UserID, now)
		if err != nil {
			return fmt.Errorf("force decline: %w", err)
		}
		if !ok {
			return ErrInvalidState
		}

		return s.audit(ctx, model.ActionSoftDeleteContribution, moderator, "contribution", id,
			description, reason, meta)
	})
	if err != nil {
		return nil, err
	}

	contribution.Status = model.ContributionStatusDeclined
	contribution.DecidedBy = &moderator.UserID
	contribution.DecidedAt = &now
	return contribution, nil
}

// SoftDeleteProject closes a project. Existing contributions and ledger
// entries are untouched; no cascade.
func (s *ModerationService) SoftDeleteProject(ctx context.Context, id uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error {
	if !moderator.Admin {
		return ErrNotAdmin
	}
	if err := validateReason(reason); err != nil {
		return err
	}

	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load project: %w", err)
	}
	if !project.IsOpen() {
		return ErrInvalidState
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.UpdateStatus(ctx, id, model.ProjectStatusClosed); err != nil {
			return fmt.Errorf("close project: %w", err)
		}
		return s.audit(ctx, model.ActionSoftDeleteProject, moderator, "project", id,
			project.Title, reason, meta)
	})
}

func (s *ModerationService) BanUser(ctx context.Context, userID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error {
	return s.setUserActive(ctx, userID, moderator, reason, meta, false)
}

func (s *ModerationService) UnbanUser(ctx context.Context, userID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta) error {
	return s.setUserActive(ctx, userID, moderator, reason, meta, true)
}

func (s *ModerationService) setUserActive(ctx context.Context, userID uuid.UUID, moderator model.Principal, reason string, meta model.RequestMeta, active bool) error {
	if !moderator.Admin {
		return ErrNotAdmin
	}
	if err := validateReason(reason); err != nil {
		return err
	}
	if userID == moderator.UserID {
		return ErrSelfModeration
	}

	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if target.IsAdmin {
		return ErrTargetAdmin
	}
	if target.IsActive == active {
		return ErrInvalidState
	}

	action := model.ActionBanUser
	if active {
		action = model.ActionUnbanUser
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.SetActive(ctx, userID, active); err != nil {
			return fmt.Errorf("set user active: %w", err)
		}
		return s.audit(ctx, action, moderator, "user", userID, target.Email, reason, meta)
	})
}

// AuditTrail returns the moderation history of one target, newest first.
func (s *ModerationService) AuditTrail(ctx context.Context, moderator model.Principal, targetType string, targetID uuid.UUID, limit int) ([]*model.ModerationLog, error) {
	if !moderator.Admin {
		return nil, ErrNotAdmin
	}
	return s.logRepo.ListByTarget(ctx, targetType, targetID, limit)
}

func (s *ModerationService) audit(ctx context.Context, action model.ModerationAction, moderator model.Principal, targetType string, targetID uuid.UUID, description, reason string, meta model.RequestMeta) error {
	_, err := s.logRepo.Create(ctx, &model.ModerationLog{
		Action:            action,
		ModeratorID:       moderator.UserID,
		ModeratorEmail:    moderator.Email,
		TargetType:        targetType,
		TargetID:          targetID,
		TargetDescription: description,
		Reason:            strings.TrimSpace(reason),
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

func validateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < minReasonLen {
		return ErrInvalidReason
	}
	return nil
}
