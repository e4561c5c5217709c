package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/internal/repository"
	"github.com/interfacehive/credit-engine/pkg/prom"
)

var (
	ErrInvalidAmount   = errors.New("award amount must be positive")
	ErrSelfAward       = errors.New("cannot award credit to yourself")
	ErrNotAccepted     = errors.New("contribution is not accepted")
	ErrNotHost         = errors.New("only the project host can award credit")
	ErrDuplicateAward  = errors.New("credit already awarded for this project and recipient")
	ErrMismatchedAward = errors.New("award does not match the contribution")
)

type LedgerRepository interface {
	Create(ctx context.Context, entry *model.CreditLedgerEntry) (*model.CreditLedgerEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.CreditLedgerEntry, error)
	FindAwardForContribution(ctx context.Context, contributionID uuid.UUID) (*model.CreditLedgerEntry, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.CreditLedgerEntry, error)
	SumByKind(ctx context.Context, recipientID uuid.UUID) (*model.Balance, error)
	HasAward(ctx context.Context, projectID, recipientID uuid.UUID) (bool, error)
	HasReversal(ctx context.Context, entryID uuid.UUID) (bool, error)
}

type CreditService struct {
	ledgerRepo       LedgerRepository
	contributionRepo ContributionRepository
	projectRepo      ProjectRepository
	userRepo         UserRepository
}

func NewCreditService(ledgerRepo LedgerRepository, contributionRepo ContributionRepository, projectRepo ProjectRepository, userRepo UserRepository) *CreditService {
	return &CreditService{
		ledgerRepo:       ledgerRepo,
		contributionRepo: contributionRepo,
		projectRepo:      projectRepo,
		userRepo:         userRepo,
	}
}

// Award writes one award entry for an accepted contribution. The pre-checks
// here give friendly errors on the common paths; the partial unique index on
// (project, recipient, kind='award') is what actually decides races, so a
// concurrent duplicate surfaces as ErrDuplicateAward from the insert.
func (s *CreditService) Award(ctx context.Context, req model.AwardRequest) (*model.CreditLedgerEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.IssuerID == req.RecipientID {
		return nil, ErrSelfAward
	}

	contribution, err := s.contributionRepo.FindByID(ctx, req.ContributionID)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load contribution: %w", err)
	}
	if contribution.Status != model.ContributionStatusAccepted {
		return nil, ErrNotAccepted
	}
	if contribution.ProjectID != req.ProjectID || contribution.ContributorID != req.RecipientID {
		return nil, ErrMismatchedAward
	}

	project, err := s.projectRepo.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.IsHostedBy(req.IssuerID) {
		issuer, err := s.userRepo.FindByID(ctx, req.IssuerID)
		if err != nil || !issuer.IsAdmin {
			return nil, ErrNotHost
		}
	}

	// advisory only, the constraint is the source of truth
	exists, err := s.ledgerRepo.HasAward(ctx, req.ProjectID, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("check existing award: %w", err)
	}
	if exists {
		prom.IncCounter(prom.SystemCredits, prom.MetricDuplicateAwardsTotal)
		return nil, ErrDuplicateAward
	}

	entry, err := s.ledgerRepo.Create(ctx, &model.CreditLedgerEntry{
		RecipientID:    req.RecipientID,
		IssuerID:       req.IssuerID,
		ProjectID:      req.ProjectID,
		ContributionID: req.ContributionID,
		Amount:         req.Amount,
		Kind:           model.EntryKindAward,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAward) {
			prom.IncCounter(prom.SystemCredits, prom.MetricDuplicateAwardsTotal)
			return nil, ErrDuplicateAward
		}
		return nil, fmt.Errorf("create award entry: %w", err)
	}

	prom.IncCounter(prom.SystemCredits, prom.MetricAwardsTotal)
	return entry, nil
}

// GetBalance recomputes the balance from a fresh aggregate scan of the
// ledger. There is no stored balance to drift out of sync.
func (s *CreditService) GetBalance(ctx context.Context, userID uuid.UUID) (*model.Balance, error) {
	start := time.Now()
	balance, err := s.ledgerRepo.SumByKind(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	prom.ObserveHistogram(prom.SystemCredits, prom.MetricBalanceReadDuration, time.Since(start).Seconds())
	return balance, nil
}

func (s *CreditService) GetLedger(ctx context.Context, userID uuid.UUID, limit int) ([]*model.CreditLedgerEntry, error) {
	return s.ledgerRepo.ListByRecipient(ctx, userID, limit)
}
