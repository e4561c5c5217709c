package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type creditFixture struct {
	ledgerRepo       *MockLedgerRepository
	contributionRepo *MockContributionRepository
	projectRepo      *MockProjectRepository
	userRepo         *MockUserRepository
	service          *CreditService

	host         *model.User
	contributor  *model.User
	project      *model.Project
	contribution *model.Contribution
}

func newCreditFixture() *creditFixture {
	f := &creditFixture{
		ledgerRepo:       new(MockLedgerRepository),
		contributionRepo: new(MockContributionRepository),
		projectRepo:      new(MockProjectRepository),
		userRepo:         new(MockUserRepository),
	}
	f.service = NewCreditService(f.ledgerRepo, f.contributionRepo, f.projectRepo, f.userRepo)

	f.host = &model.User{ID: uuid.New(), Email: "host@example.com", IsActive: true}
	f.contributor = &model.User{ID: uuid.New(), Email: "contributor@example.com", IsActive: true}
	f.project = &model.Project{ID: uuid.New(), HostUserID: f.host.ID, Title: "engine", Status: model.ProjectStatusOpen}
	f.contribution = &model.Contribution{
		ID:            uuid.New(),
		ProjectID:     f.project.ID,
		ContributorID: f.contributor.ID,
		Status:        model.ContributionStatusAccepted,
	}
	return f
}

func (f *creditFixture) awardRequest() model.AwardRequest {
	return model.AwardRequest{
		RecipientID:    f.contributor.ID,
		IssuerID:       f.host.ID,
		ProjectID:      f.project.ID,
		ContributionID: f.contribution.ID,
		Amount:         1,
	}
}

func TestCreditService_Award(t *testing.T) {
	ctx := context.Background()

	t.Run("awards one credit", func(t *testing.T) {
		f := newCreditFixture()

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.ledgerRepo.On("HasAward", ctx, f.project.ID, f.contributor.ID).Return(false, nil)
		f.ledgerRepo.On("Create", ctx, mock.MatchedBy(func(e *model.CreditLedgerEntry) bool {
			return e.Kind == model.EntryKindAward && e.Amount == 1 && e.RecipientID == f.contributor.ID
		})).Return(&model.CreditLedgerEntry{ID: uuid.New(), Amount: 1, Kind: model.EntryKindAward}, nil)

		entry, err := f.service.Award(ctx, f.awardRequest())
		require.NoError(t, err)
		assert.EqualValues(t, 1, entry.Amount)

		f.ledgerRepo.AssertExpectations(t)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		f := newCreditFixture()
		req := f.awardRequest()
		req.Amount = -2

		_, err := f.service.Award(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		f := newCreditFixture()
		req := f.awardRequest()
		req.Amount = 0

		_, err := f.service.Award(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		f.ledgerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects self award", func(t *testing.T) {
		f := newCreditFixture()
		req := f.awardRequest()
		req.IssuerID = req.RecipientID

		_, err := f.service.Award(ctx, req)
		assert.ErrorIs(t, err, ErrSelfAward)
	})

	t.Run("rejects non-accepted contribution", func(t *testing.T) {
		f := newCreditFixture()
		f.contribution.Status = model.ContributionStatusPending
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)

		_, err := f.service.Award(ctx, f.awardRequest())
		assert.ErrorIs(t, err, ErrNotAccepted)
	})

	t.Run("rejects issuer who is neither host nor admin", func(t *testing.T) {
		f := newCreditFixture()
		stranger := uuid.New()
		req := f.awardRequest()
		req.IssuerID = stranger

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.userRepo.On("FindByID", ctx, stranger).Return(&model.User{ID: stranger, IsAdmin: false}, nil)

		_, err := f.service.Award(ctx, req)
		assert.ErrorIs(t, err, ErrNotHost)
	})

	t.Run("allows admin issuer", func(t *testing.T) {
		f := newCreditFixture()
		admin := uuid.New()
		req := f.awardRequest()
		req.IssuerID = admin

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.userRepo.On("FindByID", ctx, admin).Return(&model.User{ID: admin, IsAdmin: true}, nil)
		f.ledgerRepo.On("HasAward", ctx, f.project.ID, f.contributor.ID).Return(false, nil)
		f.ledgerRepo.On("Create", ctx, mock.Anything).
			Return(&model.CreditLedgerEntry{ID: uuid.New(), Amount: 1, Kind: model.EntryKindAward}, nil)

		_, err := f.service.Award(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("rejects mismatched recipient", func(t *testing.T) {
		f := newCreditFixture()
		req := f.awardRequest()
		req.RecipientID = uuid.New()

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)

		_, err := f.service.Award(ctx, req)
		assert.ErrorIs(t, err, ErrMismatchedAward)
	})

	t.Run("duplicate caught by pre-check", func(t *testing.T) {
		f := newCreditFixture()

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.ledgerRepo.On("HasAward", ctx, f.project.ID, f.contributor.ID).Return(true, nil)

		_, err := f.service.Award(ctx, f.awardRequest())
		assert.ErrorIs(t, err, ErrDuplicateAward)
		f.ledgerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate caught by the unique index under a race", func(t *testing.T) {
		f := newCreditFixture()

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.ledgerRepo.On("HasAward", ctx, f.project.ID, f.contributor.ID).Return(false, nil)
		f.ledgerRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateAward)

		_, err := f.service.Award(ctx, f.awardRequest())
		assert.ErrorIs(t, err, ErrDuplicateAward)
	})

	t.Run("contribution not found", func(t *testing.T) {
		f := newCreditFixture()
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(nil, repository.ErrContributionNotFound)

		_, err := f.service.Award(ctx, f.awardRequest())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreditService_GetBalance(t *testing.T) {
	ctx := context.Background()
	f := newCreditFixture()

	expected := &model.Balance{UserID: f.contributor.ID, Total: 4, Awards: 2, Reversals: 1, Adjustments: 3}
	f.ledgerRepo.On("SumByKind", ctx, f.contributor.ID).Return(expected, nil)

	balance, err := f.service.GetBalance(ctx, f.contributor.ID)
	require.NoError(t, err)
	assert.Equal(t, expected.Total, balance.Total)
	assert.Equal(t, expected.Awards-expected.Reversals+expected.Adjustments, balance.Total)
}

func TestCreditService_GetBalance_Error(t *testing.T) {
	ctx := context.Background()
	f := newCreditFixture()

	f.ledgerRepo.On("SumByKind", ctx, f.contributor.ID).Return(nil, errors.New("connection reset"))

	_, err := f.service.GetBalance(ctx, f.contributor.ID)
	assert.Error(t, err)
}

func TestCreditService_GetLedger(t *testing.T) {
	ctx := context.Background()
	f := newCreditFixture()

	entries := []*model.CreditLedgerEntry{
		{ID: uuid.New(), Amount: 1, Kind: model.EntryKindAward},
		{ID: uuid.New(), Amount: -1, Kind: model.EntryKindReversal},
	}
	f.ledgerRepo.On("ListByRecipient", ctx, f.contributor.ID, 10).Return(entries, nil)

	got, err := f.service.GetLedger(ctx, f.contributor.ID, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
