package impl

import (
	"context"
	"testing"

	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/service"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applicationInput() *usecase.ApplicationInput {
	return &usecase.ApplicationInput{
		Name:            "Pandit Sharma",
		Bio:             "Vedic rituals",
		Specialties:     []string{"Havan", " Puja ", "Havan", ""},
		ExperienceYears: 12,
		Price:           51,
		Location:        "Pune",
	}
}

func (env *testEnv) applicant(t *testing.T) *entity.Account {
	t.Helper()

	account := env.store.addAccount(entity.Account{Name: "Ravi"})
	_, err := env.approvals.Apply(context.Background(), account.ID, applicationInput())
	require.NoError(t, err)

	return account
}

func TestApprovalService_Apply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.store.addAccount(entity.Account{Name: "Ravi"})

	applied, err := env.approvals.Apply(ctx, account.ID, applicationInput())
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusPending, applied.ApplicationState())
	require.NotNil(t, applied.Application)
	assert.Equal(t, []string{"Havan", "Puja"}, applied.Application.Specialties)

	pending, err := env.approvals.ListApplications(ctx, entity.ApprovalStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, account.ID, pending[0].ID)

	// resubmitting while pending replaces the snapshot
	_, err = env.approvals.Apply(ctx, account.ID, applicationInput())
	assert.NoError(t, err)
}

func TestApprovalService_ApplyRejectsDecidedAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	approved := env.applicant(t)
	_, err := env.approvals.Decide(ctx, approved.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)
	_, err = env.approvals.Apply(ctx, approved.ID, applicationInput())
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	rejected := env.applicant(t)
	_, err = env.approvals.Decide(ctx, rejected.ID, entity.ApprovalStatusRejected)
	require.NoError(t, err)
	_, err = env.approvals.Apply(ctx, rejected.ID, applicationInput())
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	blank := applicationInput()
	blank.Name = " "
	_, err = env.approvals.Apply(ctx, env.store.addAccount(entity.Account{}).ID, blank)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestApprovalService_ApproveCreatesProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)

	// cache the pending list before the decision
	pending, err := env.approvals.ListApplications(ctx, entity.ApprovalStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	result, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)
	require.NoError(t, result.Warning)

	assert.True(t, result.Account.IsProvider)
	assert.Equal(t, entity.ApprovalStatusApproved, result.Account.ApplicationState())
	require.NotNil(t, result.Profile)
	assert.Equal(t, "Pandit Sharma", result.Profile.Name)
	assert.Equal(t, []string{"Havan", "Puja"}, result.Profile.Specialties)
	assert.InDelta(t, 51, result.Profile.Price, 0.001)

	stored, ok := env.store.profileOf(account.ID)
	require.True(t, ok)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.ApprovalStatus)

	pending, err = env.approvals.ListApplications(ctx, entity.ApprovalStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	view, err := env.approvals.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, view.IsProvider)

	eventually(t, func() bool { return env.publisher.published(service.EventApplicationDecided) == 1 })
}

func TestApprovalService_RepeatedDecisionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)

	first, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)
	second, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)

	assert.Equal(t, first.Profile.ID, second.Profile.ID)
	assert.Len(t, env.store.profiles, 1)
	eventually(t, func() bool { return env.publisher.published(service.EventApplicationDecided) == 1 })
}

func TestApprovalService_SwitchingDecisionIsInvalid(t *testing.T) {
	tests := []struct {
		first, second entity.ApprovalStatus
	}{
		{entity.ApprovalStatusApproved, entity.ApprovalStatusRejected},
		{entity.ApprovalStatusRejected, entity.ApprovalStatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.first.String()+"->"+tt.second.String(), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			account := env.applicant(t)

			_, err := env.approvals.Decide(ctx, account.ID, tt.first)
			require.NoError(t, err)

			_, err = env.approvals.Decide(ctx, account.ID, tt.second)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
			stored := env.store.account(account.ID)
			assert.Equal(t, tt.first, stored.ApplicationState())
		})
	}
}

func TestApprovalService_DecideValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.approvals.Decide(context.Background(), uuid.New(), entity.ApprovalStatusPending)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	_, err = env.approvals.Decide(context.Background(), uuid.New(), entity.ApprovalStatusApproved)
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
}

func TestApprovalService_DecideWithoutApplication(t *testing.T) {
	env := newTestEnv(t)
	account := env.store.addAccount(entity.Account{Name: "Direct"})

	result, err := env.approvals.Decide(context.Background(), account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)

	require.NotNil(t, result.Profile)
	assert.Equal(t, "Direct", result.Profile.Name)
	assert.Empty(t, result.Profile.Specialties)
}

func TestApprovalService_RejectMirrorsExistingProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)
	profile := &entity.ProviderProfile{UserID: account.ID, Name: "Old", ApprovalStatus: entity.ApprovalStatusPending}
	require.NoError(t, fakeProfiles{env.store}.CreateProviderProfile(ctx, profile))

	result, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusRejected)
	require.NoError(t, err)

	assert.False(t, result.Account.IsProvider)
	stored, _ := env.store.profileOf(account.ID)
	assert.Equal(t, entity.ApprovalStatusRejected, stored.ApprovalStatus)
}

func TestApprovalService_RejectWithoutProfileCreatesNone(t *testing.T) {
	env := newTestEnv(t)
	account := env.applicant(t)

	result, err := env.approvals.Decide(context.Background(), account.ID, entity.ApprovalStatusRejected)
	require.NoError(t, err)

	assert.Nil(t, result.Profile)
	assert.Empty(t, env.store.profiles)
}

func TestApprovalService_ProfileFailureIsPartial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)
	env.store.createErr = errors.New("connection reset")

	result, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)

	assert.ErrorIs(t, result.Warning, domainerrors.ErrPartialFailure)
	assert.True(t, env.store.account(account.ID).IsProvider)
	assert.Empty(t, env.store.profiles)

	// an operator repairs the drift once the store recovers
	env.store.createErr = nil
	profile, err := env.approvals.Reconcile(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, profile.ApprovalStatus)
	assert.Len(t, env.store.profiles, 1)
}

func TestApprovalService_ReconcileMirrorsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)
	require.NoError(t, fakeProfiles{env.store}.CreateProviderProfile(ctx,
		&entity.ProviderProfile{UserID: account.ID, Name: "Drifted", ApprovalStatus: entity.ApprovalStatusPending}))

	env.store.mirrorErr = errors.New("timeout")
	result, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)
	require.ErrorIs(t, result.Warning, domainerrors.ErrPartialFailure)

	env.store.mirrorErr = nil
	profile, err := env.approvals.Reconcile(ctx, account.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusApproved, profile.ApprovalStatus)
	stored, _ := env.store.profileOf(account.ID)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.ApprovalStatus)
}

func TestApprovalService_ReconcileWithoutProfile(t *testing.T) {
	env := newTestEnv(t)
	account := env.applicant(t)

	_, err := env.approvals.Reconcile(context.Background(), account.ID)

	assert.ErrorIs(t, err, domainerrors.ErrProviderNotFound)
}

func TestApprovalService_RevokeKeepsProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)
	_, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	require.NoError(t, err)

	revoked, err := env.approvals.Revoke(ctx, account.ID)
	require.NoError(t, err)

	assert.False(t, revoked.IsProvider)
	assert.Nil(t, revoked.ApplicationStatus)
	stored, ok := env.store.profileOf(account.ID)
	require.True(t, ok)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.ApprovalStatus)

	view, err := env.approvals.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, view.IsProvider)

	_, err = env.approvals.Revoke(ctx, account.ID)
	require.NoError(t, err)
	eventually(t, func() bool { return env.publisher.published(service.EventProviderRevoked) == 1 })

	// a revoked account may apply again
	_, err = env.approvals.Apply(ctx, account.ID, applicationInput())
	assert.NoError(t, err)
}

func TestApprovalService_ConcurrentActionOnSameAccountConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.applicant(t)
	other := env.applicant(t)

	release, ok := env.approvals.inFlight.Acquire(accountViewKey(account.ID))
	require.True(t, ok)

	_, err := env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	_, err = env.approvals.Revoke(ctx, account.ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	// other accounts are not blocked
	_, err = env.approvals.Decide(ctx, other.ID, entity.ApprovalStatusApproved)
	assert.NoError(t, err)

	release()
	_, err = env.approvals.Decide(ctx, account.ID, entity.ApprovalStatusApproved)
	assert.NoError(t, err)
}
