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

type contributionFixture struct {
	contributionRepo *MockContributionRepository
	projectRepo      *MockProjectRepository
	userRepo         *MockUserRepository
	awarder          *MockCreditAwarder
	tx               *MockTransactionManager
	publisher        *MockEventPublisher
	service          *ContributionService

	host         *model.User
	contributor  *model.User
	project      *model.Project
	contribution *model.Contribution
}

func newContributionFixture() *contributionFixture {
	f := &contributionFixture{
		contributionRepo: new(MockContributionRepository),
		projectRepo:      new(MockProjectRepository),
		userRepo:         new(MockUserRepository),
		awarder:          new(MockCreditAwarder),
		tx:               new(MockTransactionManager),
		publisher:        new(MockEventPublisher),
	}
	f.service = NewContributionService(f.contributionRepo, f.projectRepo, f.userRepo, f.awarder, f.tx, f.publisher)

	f.host = &model.User{ID: uuid.New(), Email: "host@example.com", IsActive: true}
	f.contributor = &model.User{ID: uuid.New(), Email: "contributor@example.com", IsActive: true}
	f.project = &model.Project{ID: uuid.New(), HostUserID: f.host.ID, Title: "engine", Status: model.ProjectStatusOpen}
	f.contribution = &model.Contribution{
		ID:            uuid.New(),
		ProjectID:     f.project.ID,
		ContributorID: f.contributor.ID,
		Status:        model.ContributionStatusPending,
	}
	return f
}

func (f *contributionFixture) hostPrincipal() model.Principal {
	return model.Principal{UserID: f.host.ID, Email: f.host.Email}
}

func TestContributionService_Decide_Accept(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusAccepted, f.host.ID, mock.Anything).
		Return(true, nil)

	entry := &model.CreditLedgerEntry{ID: uuid.New(), Amount: 1, Kind: model.EntryKindAward}
	f.awarder.On("Award", ctx, mock.MatchedBy(func(req model.AwardRequest) bool {
		return req.RecipientID == f.contributor.ID && req.IssuerID == f.host.ID && req.Amount == 1
	})).Return(entry, nil)

	f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(e *model.ContributionEvent) bool {
		return e.Type == model.EventContributionAccepted && e.CreditAwarded
	})).Return(nil)

	result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
	require.NoError(t, err)
	assert.True(t, result.CreditAwarded)
	assert.Equal(t, entry, result.CreditEntry)
	assert.Equal(t, model.ContributionStatusAccepted, result.Contribution.Status)
	require.NotNil(t, result.Contribution.DecidedBy)
	assert.Equal(t, f.host.ID, *result.Contribution.DecidedBy)

	f.awarder.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestContributionService_Decide_Decline(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusDeclined, f.host.ID, mock.Anything).
		Return(true, nil)
	f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(e *model.ContributionEvent) bool {
		return e.Type == model.EventContributionDeclined && !e.CreditAwarded
	})).Return(nil)

	result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionDecline)
	require.NoError(t, err)
	assert.False(t, result.CreditAwarded)
	assert.Nil(t, result.CreditEntry)

	f.awarder.AssertNotCalled(t, "Award", mock.Anything, mock.Anything)
}

func TestContributionService_Decide_DuplicateAwardKeepsAccept(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusAccepted, f.host.ID, mock.Anything).
		Return(true, nil)
	f.awarder.On("Award", ctx, mock.Anything).Return(nil, ErrDuplicateAward)
	f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.ContributionStatusAccepted, result.Contribution.Status)
	assert.False(t, result.CreditAwarded)
	assert.Nil(t, result.CreditEntry)
}

func TestContributionService_Decide_AwardFailureAbortsEverything(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusAccepted, f.host.ID, mock.Anything).
		Return(true, nil)
	f.awarder.On("Award", ctx, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidState)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestContributionService_Decide_RepeatedSameDecisionEchoes(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	decidedAt := f.contribution.CreatedAt
	f.contribution.Status = model.ContributionStatusAccepted
	f.contribution.DecidedBy = &f.host.ID
	f.contribution.DecidedAt = &decidedAt

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)

	result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
	require.NoError(t, err)
	assert.False(t, result.CreditAwarded)
	assert.Nil(t, result.CreditEntry)

	f.tx.AssertNotCalled(t, "WithinTransaction", mock.Anything, mock.Anything)
	f.awarder.AssertNotCalled(t, "Award", mock.Anything, mock.Anything)
}

func TestContributionService_Decide_ConflictingDecision(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	decidedAt := f.contribution.CreatedAt
	f.contribution.Status = model.ContributionStatusAccepted
	f.contribution.DecidedBy = &f.host.ID
	f.contribution.DecidedAt = &decidedAt

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)

	_, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionDecline)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestContributionService_Decide_LostRace(t *testing.T) {
	ctx := context.Background()

	t.Run("winner recorded the same decision", func(t *testing.T) {
		f := newContributionFixture()

		decided := *f.contribution
		decided.Status = model.ContributionStatusAccepted
		decided.DecidedBy = &f.host.ID

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil).Once()
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
		f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusAccepted, f.host.ID, mock.Anything).
			Return(false, nil)
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(&decided, nil).Once()
		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

		result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
		require.NoError(t, err)
		assert.False(t, result.CreditAwarded)
		assert.Equal(t, model.ContributionStatusAccepted, result.Contribution.Status)
		f.awarder.AssertNotCalled(t, "Award", mock.Anything, mock.Anything)
	})

	t.Run("winner recorded the opposite decision", func(t *testing.T) {
		f := newContributionFixture()

		decided := *f.contribution
		decided.Status = model.ContributionStatusDeclined
		decided.DecidedBy = &f.host.ID

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil).Once()
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
		f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusAccepted, f.host.ID, mock.Anything).
			Return(false, nil)
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(&decided, nil).Once()

		_, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestContributionService_Decide_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("stranger is rejected", func(t *testing.T) {
		f := newContributionFixture()
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)

		stranger := model.Principal{UserID: uuid.New()}
		_, err := f.service.Decide(ctx, f.contribution.ID, stranger, model.DecisionAccept)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("admin is allowed", func(t *testing.T) {
		f := newContributionFixture()
		admin := model.Principal{UserID: uuid.New(), Admin: true}

		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
		f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusDeclined, admin.UserID, mock.Anything).
			Return(true, nil)
		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

		_, err := f.service.Decide(ctx, f.contribution.ID, admin, model.DecisionDecline)
		assert.NoError(t, err)
	})
}

func TestContributionService_Decide_InvalidInput(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown decision", func(t *testing.T) {
		f := newContributionFixture()
		_, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.Decision("maybe"))
		assert.ErrorIs(t, err, ErrInvalidDecision)
	})

	t.Run("missing contribution", func(t *testing.T) {
		f := newContributionFixture()
		f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(nil, repository.ErrContributionNotFound)

		_, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionAccept)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestContributionService_Decide_PublishFailureDoesNotFailDecision(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	f.contributionRepo.On("FindByID", ctx, f.contribution.ID).Return(f.contribution, nil)
	f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
	f.tx.On("WithinTransaction", ctx, mock.Anything).Return(nil)
	f.contributionRepo.On("TransitionFromPending", ctx, f.contribution.ID, model.ContributionStatusDeclined, f.host.ID, mock.Anything).
		Return(true, nil)
	f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(errors.New("stream down"))

	result, err := f.service.Decide(ctx, f.contribution.ID, f.hostPrincipal(), model.DecisionDecline)
	require.NoError(t, err)
	assert.Equal(t, model.ContributionStatusDeclined, result.Contribution.Status)
}

func TestContributionService_Submit(t *testing.T) {
	ctx := context.Background()

	submitRequest := func(f *contributionFixture) model.SubmitRequest {
		return model.SubmitRequest{
			ProjectID:     f.project.ID,
			ContributorID: f.contributor.ID,
			Title:         "fix the parser",
			Body:          "patch attached",
		}
	}

	t.Run("creates a pending contribution and publishes", func(t *testing.T) {
		f := newContributionFixture()

		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.contributionRepo.On("HasActiveSubmission", ctx, f.project.ID, f.contributor.ID).Return(false, nil)
		f.contributionRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Contribution) bool {
			return c.Status == model.ContributionStatusPending && c.ProjectID == f.project.ID
		})).Return(f.contribution, nil)
		f.publisher.On("Publish", ctx, mock.MatchedBy(func(e *model.ContributionEvent) bool {
			return e.Type == model.EventContributionSubmitted && e.RecipientEmail == f.contributor.Email
		})).Return(nil)

		created, err := f.service.Submit(ctx, submitRequest(f))
		require.NoError(t, err)
		assert.Equal(t, model.ContributionStatusPending, created.Status)

		f.publisher.AssertExpectations(t)
	})

	t.Run("closed project", func(t *testing.T) {
		f := newContributionFixture()
		f.project.Status = model.ProjectStatusClosed

		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)

		_, err := f.service.Submit(ctx, submitRequest(f))
		assert.ErrorIs(t, err, ErrProjectClosed)
	})

	t.Run("own project", func(t *testing.T) {
		f := newContributionFixture()
		req := submitRequest(f)
		req.ContributorID = f.host.ID

		f.userRepo.On("FindByID", ctx, f.host.ID).Return(f.host, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)

		_, err := f.service.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrOwnProject)
	})

	t.Run("repeat submission", func(t *testing.T) {
		f := newContributionFixture()

		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)
		f.projectRepo.On("FindByID", ctx, f.project.ID).Return(f.project, nil)
		f.contributionRepo.On("HasActiveSubmission", ctx, f.project.ID, f.contributor.ID).Return(true, nil)

		_, err := f.service.Submit(ctx, submitRequest(f))
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("banned contributor", func(t *testing.T) {
		f := newContributionFixture()
		f.contributor.IsActive = false

		f.userRepo.On("FindByID", ctx, f.contributor.ID).Return(f.contributor, nil)

		_, err := f.service.Submit(ctx, submitRequest(f))
		assert.ErrorIs(t, err, ErrUserBanned)
	})
}

func TestContributionService_List(t *testing.T) {
	ctx := context.Background()
	f := newContributionFixture()

	filter := model.ContributionFilter{ProjectID: &f.project.ID, Limit: 10}
	f.contributionRepo.On("List", ctx, filter).Return([]*model.Contribution{f.contribution}, int64(1), nil)

	items, total, err := f.service.List(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}
