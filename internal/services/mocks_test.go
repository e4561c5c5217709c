package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *model.CreditLedgerEntry) (*model.CreditLedgerEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CreditLedgerEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) FindAwardForContribution(ctx context.Context, contributionID uuid.UUID) (*model.CreditLedgerEntry, error) {
	args := m.Called(ctx, contributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.CreditLedgerEntry, error) {
	args := m.Called(ctx, recipientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CreditLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumByKind(ctx context.Context, recipientID uuid.UUID) (*model.Balance, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Balance), args.Error(1)
}

func (m *MockLedgerRepository) HasAward(ctx context.Context, projectID, recipientID uuid.UUID) (bool, error) {
	args := m.Called(ctx, projectID, recipientID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) HasReversal(ctx context.Context, entryID uuid.UUID) (bool, error) {
	args := m.Called(ctx, entryID)
	return args.Bool(0), args.Error(1)
}

type MockContributionRepository struct {
	mock.Mock
}

func (m *MockContributionRepository) Create(ctx context.Context, c *model.Contribution) (*model.Contribution, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contribution), args.Error(1)
}

func (m *MockContributionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contribution), args.Error(1)
}

func (m *MockContributionRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, to model.ContributionStatus, decidedBy uuid.UUID, decidedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, to, decidedBy, decidedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockContributionRepository) ForceDecline(ctx context.Context, id uuid.UUID, moderatorID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, moderatorID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockContributionRepository) List(ctx context.Context, f model.ContributionFilter) ([]*model.Contribution, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Contribution), args.Get(1).(int64), args.Error(2)
}

func (m *MockContributionRepository) HasActiveSubmission(ctx context.Context, projectID, contributorID uuid.UUID) (bool, error) {
	args := m.Called(ctx, projectID, contributorID)
	return args.Bool(0), args.Error(1)
}

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ProjectStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

type MockModerationLogRepository struct {
	mock.Mock
}

func (m *MockModerationLogRepository) Create(ctx context.Context, log *model.ModerationLog) (*model.ModerationLog, error) {
	args := m.Called(ctx, log)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ModerationLog), args.Error(1)
}

func (m *MockModerationLogRepository) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]*model.ModerationLog, error) {
	args := m.Called(ctx, targetType, targetID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ModerationLog), args.Error(1)
}

// MockTransactionManager runs fn inline unless told to fail, mirroring how
// the real unit of work behaves from the caller's side.
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockCreditAwarder struct {
	mock.Mock
}

func (m *MockCreditAwarder) Award(ctx context.Context, req model.AwardRequest) (*model.CreditLedgerEntry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditLedgerEntry), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *model.ContributionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
