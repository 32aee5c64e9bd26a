package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"darshan/internal/convergence"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/domain/service"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// approvalService implements the ApprovalUsecase interface.
type approvalService struct {
	accountRepo repository.AccountRepository
	profileRepo repository.ProviderProfileRepository
	views       usecase.ViewUsecase
	sync        *convergence.Synchronizer
	inFlight    *convergence.InFlight
	notifier    *notifier
	now         func() time.Time
	logger      *slog.Logger
}

// ApprovalServiceParams holds dependencies for ApprovalService, injected by Fx.
type ApprovalServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	ProfileRepo repository.ProviderProfileRepository
	Views       usecase.ViewUsecase
	Sync        *convergence.Synchronizer
	Publisher   service.EventPublisher
	Logger      *slog.Logger
}

// NewApprovalService is the constructor for approvalService.
func NewApprovalService(params ApprovalServiceParams) usecase.ApprovalUsecase {
	return &approvalService{
		accountRepo: params.AccountRepo,
		profileRepo: params.ProfileRepo,
		views:       params.Views,
		sync:        params.Sync,
		inFlight:    convergence.NewInFlight(),
		notifier:    newNotifier(params.Publisher, params.Logger),
		now:         time.Now,
		logger:      params.Logger,
	}
}

func (srv *approvalService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Apply submits (or resubmits while pending) a provider application.
func (srv *approvalService) Apply(ctx context.Context, userID uuid.UUID, input *usecase.ApplicationInput) (*entity.Account, error) {
	release, ok := srv.inFlight.Acquire(accountViewKey(userID))
	if !ok {
		return nil, domainerrors.ErrConflict.WrapMessage("another action on this account is in progress")
	}
	defer release()

	account, err := srv.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch account.ApplicationState() {
	case entity.ApprovalStatusApproved:
		if account.IsProvider {
			return nil, domainerrors.ErrConflict.WrapMessage("account already has provider access")
		}
	case entity.ApprovalStatusRejected:
		return nil, domainerrors.ErrInvalidTransition.WrapMessage("a rejected application cannot be resubmitted")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("name is required")
	}

	application := &entity.ProviderApplication{
		Name:            name,
		Bio:             strings.TrimSpace(input.Bio),
		Specialties:     entity.NormalizeSpecialties(input.Specialties),
		ExperienceYears: input.ExperienceYears,
		Price:           input.Price,
		Availability:    strings.TrimSpace(input.Availability),
		Location:        strings.TrimSpace(input.Location),
	}

	now := srv.now()
	if err := srv.accountRepo.SubmitApplication(ctx, userID, application, now); err != nil {
		return nil, errors.Wrap(err, "failed to submit application")
	}

	pending := entity.ApprovalStatusPending
	account.Application = application
	account.ApplicationStatus = &pending
	account.AppliedAt = &now
	account.DecidedAt = nil

	srv.log(ctx).Info("Provider application submitted", slog.String("user_id", userID.String()))

	srv.converge(ctx, userID, pending, nil, entity.ApprovalStatusPending)

	return account, nil
}

// Decide records an admin decision on a pending application and mirrors it into the provider profile.
func (srv *approvalService) Decide(ctx context.Context, userID uuid.UUID, decision entity.ApprovalStatus) (*usecase.DecisionResult, error) {
	if !decision.IsDecision() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("decision must be approved or rejected, got %q", decision))
	}

	release, ok := srv.inFlight.Acquire(accountViewKey(userID))
	if !ok {
		return nil, domainerrors.ErrConflict.WrapMessage("another action on this account is in progress")
	}
	defer release()

	account, err := srv.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	repeated := account.ApplicationState() == decision
	switch current := account.ApplicationState(); current {
	case "", entity.ApprovalStatusPending, decision:
	default:
		return nil, domainerrors.ErrInvalidTransition.WrapMessage(
			fmt.Sprintf("application is already %s", current))
	}

	isProvider := decision == entity.ApprovalStatusApproved
	now := srv.now()
	if err := srv.accountRepo.UpdateProviderAccess(ctx, userID, isProvider, &decision, now); err != nil {
		return nil, errors.Wrap(err, "failed to record decision")
	}

	account.IsProvider = isProvider
	account.ApplicationStatus = &decision
	account.DecidedAt = &now

	result := &usecase.DecisionResult{Account: account}
	result.Profile, result.Warning = srv.mirrorDecision(ctx, account, decision)
	if result.Warning != nil {
		srv.log(ctx).Warn("Decision committed but provider profile write failed",
			slog.String("user_id", userID.String()),
			slog.String("decision", decision.String()),
			slog.Any("error", result.Warning),
		)
	}

	srv.log(ctx).Info("Provider application decided",
		slog.String("user_id", userID.String()),
		slog.String("decision", decision.String()),
	)

	var profileID *uuid.UUID
	if result.Profile != nil {
		profileID = &result.Profile.ID
	}
	srv.converge(ctx, userID, decision, profileID, entity.ApprovalStatusPending, decision)
	if repeated {
		return result, nil
	}
	srv.notifier.notify(ctx, service.EventApplicationDecided, map[string]string{
		"user_id":  userID.String(),
		"decision": decision.String(),
	}, userID)

	return result, nil
}

// mirrorDecision creates or updates the provider profile. Errors are reported as a partial failure.
func (srv *approvalService) mirrorDecision(ctx context.Context, account *entity.Account, decision entity.ApprovalStatus) (*entity.ProviderProfile, error) {
	profile, err := srv.profileRepo.FindProviderProfileByUserID(ctx, account.ID)
	switch {
	case err == nil:
		if profile.ApprovalStatus == decision {
			return profile, nil
		}
		if err := srv.profileRepo.UpdateProviderApprovalStatus(ctx, account.ID, decision); err != nil {
			return profile, partialFailure(err)
		}
		profile.ApprovalStatus = decision

		return profile, nil
	case !errors.Is(err, repository.ErrProviderProfileNotFound):
		return nil, partialFailure(err)
	case decision != entity.ApprovalStatusApproved:
		return nil, nil
	}

	profile = newProfileFromAccount(account)
	err = srv.profileRepo.CreateProviderProfile(ctx, profile)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, repository.ErrProviderProfileExists):
		// Created concurrently; mirror onto the winner.
		if err := srv.profileRepo.UpdateProviderApprovalStatus(ctx, account.ID, decision); err != nil {
			return nil, partialFailure(err)
		}
		existing, err := srv.profileRepo.FindProviderProfileByUserID(ctx, account.ID)
		if err != nil {
			return nil, partialFailure(err)
		}

		return existing, nil
	default:
		return nil, partialFailure(err)
	}
}

// Revoke removes provider access and clears the application. The profile is kept.
func (srv *approvalService) Revoke(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	release, ok := srv.inFlight.Acquire(accountViewKey(userID))
	if !ok {
		return nil, domainerrors.ErrConflict.WrapMessage("another action on this account is in progress")
	}
	defer release()

	account, err := srv.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.IsProvider && account.ApplicationStatus == nil {
		return account, nil
	}

	previous := account.ApplicationState()
	now := srv.now()
	if err := srv.accountRepo.UpdateProviderAccess(ctx, userID, false, nil, now); err != nil {
		return nil, errors.Wrap(err, "failed to revoke provider access")
	}

	account.IsProvider = false
	account.ApplicationStatus = nil
	account.DecidedAt = &now

	srv.log(ctx).Info("Provider access revoked", slog.String("user_id", userID.String()))

	var profileID *uuid.UUID
	if profile, err := srv.profileRepo.FindProviderProfileByUserID(ctx, userID); err == nil {
		profileID = &profile.ID
	}
	listed := []entity.ApprovalStatus{entity.ApprovalStatusPending}
	if previous != "" && previous != entity.ApprovalStatusPending {
		listed = append(listed, previous)
	}
	srv.converge(ctx, userID, "", profileID, listed...)
	srv.notifier.notify(ctx, service.EventProviderRevoked, map[string]string{"user_id": userID.String()}, userID)

	return account, nil
}

// Reconcile repairs drift between the account's application status and the provider profile.
func (srv *approvalService) Reconcile(ctx context.Context, userID uuid.UUID) (*entity.ProviderProfile, error) {
	release, ok := srv.inFlight.Acquire(accountViewKey(userID))
	if !ok {
		return nil, domainerrors.ErrConflict.WrapMessage("another action on this account is in progress")
	}
	defer release()

	account, err := srv.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := account.ApplicationState()

	profile, err := srv.profileRepo.FindProviderProfileByUserID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrProviderProfileNotFound):
		if status != entity.ApprovalStatusApproved {
			return nil, domainerrors.ErrProviderNotFound
		}
		profile = newProfileFromAccount(account)
		if err := srv.profileRepo.CreateProviderProfile(ctx, profile); err != nil {
			return nil, errors.Wrap(err, "failed to create provider profile")
		}
	case err != nil:
		return nil, errors.Wrap(err, "failed to find provider profile")
	case status != "" && profile.ApprovalStatus != status:
		if err := srv.profileRepo.UpdateProviderApprovalStatus(ctx, userID, status); err != nil {
			return nil, errors.Wrap(err, "failed to mirror approval status")
		}
		profile.ApprovalStatus = status
	default:
		return profile, nil
	}

	srv.log(ctx).Info("Provider profile reconciled",
		slog.String("user_id", userID.String()),
		slog.String("approval_status", profile.ApprovalStatus.String()),
	)

	return profile, nil
}

func (srv *approvalService) ListApplications(ctx context.Context, status entity.ApprovalStatus) ([]*entity.Account, error) {
	return srv.views.Applications(ctx, status)
}

func (srv *approvalService) GetAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	return srv.views.Account(ctx, userID)
}

func (srv *approvalService) findAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	account, err := srv.accountRepo.FindAccountByIDForWrite(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, domainerrors.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	return account, nil
}

// converge refreshes the account view, the application lists and, when known, the provider dashboard.
func (srv *approvalService) converge(ctx context.Context, userID uuid.UUID, expected entity.ApprovalStatus, profileID *uuid.UUID, lists ...entity.ApprovalStatus) {
	views := []convergence.View{
		{Key: accountViewKey(userID), Refetch: func(ctx context.Context) error { return srv.views.RefreshAccount(ctx, userID) }},
	}

	seen := make(map[entity.ApprovalStatus]bool, len(lists))
	for _, status := range lists {
		if seen[status] {
			continue
		}
		seen[status] = true
		views = append(views, convergence.View{
			Key:     applicationsViewKey(status),
			Refetch: func(ctx context.Context) error { return srv.views.RefreshApplications(ctx, status) },
		})
	}

	if profileID != nil {
		id := *profileID
		views = append(views, convergence.View{
			Key:     providerViewKey(id),
			Refetch: func(ctx context.Context) error { return srv.views.RefreshProviderBookings(ctx, id) },
		})
	}

	srv.sync.Converge(ctx, convergence.Mutation{
		Entity:   "account",
		ID:       userID.String(),
		Views:    views,
		Expected: string(expected),
		Verify: func(ctx context.Context) (string, error) {
			observed, err := srv.accountRepo.FindAccountByID(ctx, userID)
			if err != nil {
				return "", err
			}

			return string(observed.ApplicationState()), nil
		},
	})
}

func newProfileFromAccount(account *entity.Account) *entity.ProviderProfile {
	profile := &entity.ProviderProfile{
		UserID:         account.ID,
		Name:           account.Name,
		Specialties:    []string{},
		ApprovalStatus: entity.ApprovalStatusApproved,
	}

	if app := account.Application; app != nil {
		if app.Name != "" {
			profile.Name = app.Name
		}
		profile.Bio = app.Bio
		profile.Specialties = entity.NormalizeSpecialties(app.Specialties)
		profile.ExperienceYears = app.ExperienceYears
		profile.Price = app.Price
		profile.Availability = app.Availability
		profile.Location = app.Location
	}

	return profile
}

func partialFailure(err error) error {
	return errors.Wrap(domainerrors.ErrPartialFailure, err.Error())
}
