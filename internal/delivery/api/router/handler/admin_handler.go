package handler

import (
	"log/slog"
	"net/http"

	"darshan/internal/delivery/api/response"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AdminHandlerParams holds dependencies for AdminHandler, injected by Fx.
type AdminHandlerParams struct {
	fx.In

	ApprovalUC usecase.ApprovalUsecase
	Logger     *slog.Logger
}

// AdminHandler serves the provider approval workflow to administrators
type AdminHandler struct {
	approvalUC usecase.ApprovalUsecase
	logger     *slog.Logger
}

// NewAdminHandler is the constructor for AdminHandler
func NewAdminHandler(params AdminHandlerParams) *AdminHandler {
	return &AdminHandler{
		approvalUC: params.ApprovalUC,
		logger:     params.Logger,
	}
}

// DecisionRequest represents an admin decision on an application
type DecisionRequest struct {
	Decision entity.ApprovalStatus `json:"decision" validate:"required,oneof=approved rejected"`
}

// Warning tells the admin a decision was stored but a dependent write failed.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecisionResponse is the decision outcome returned to the admin.
type DecisionResponse struct {
	Account *entity.Account         `json:"account"`
	Profile *entity.ProviderProfile `json:"profile,omitempty"`
	Warning *Warning                `json:"warning,omitempty"`
}

// ListApplications lists accounts by application status, pending by default
func (h *AdminHandler) ListApplications(c echo.Context) error {
	status := entity.ApprovalStatus(c.QueryParam("status"))
	if status == "" {
		status = entity.ApprovalStatusPending
	}

	accounts, err := h.approvalUC.ListApplications(c.Request().Context(), status)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, accounts)
}

// DecideApplication approves or rejects a provider application
func (h *AdminHandler) DecideApplication(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return response.BadRequest(c, "INVALID_ID", "Invalid user ID")
	}

	var req DecisionRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	result, err := h.approvalUC.Decide(c.Request().Context(), userID, req.Decision)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	resp := DecisionResponse{Account: result.Account, Profile: result.Profile}
	if result.Warning != nil {
		resp.Warning = &Warning{Code: "PARTIAL_FAILURE", Message: result.Warning.Error()}

		var appErr domainerrors.AppError
		if errors.As(result.Warning, &appErr) {
			resp.Warning.Code = appErr.ErrorCode()
		}
	}

	return response.Success(c, http.StatusOK, resp)
}

// RevokeProvider removes provider access; the provider profile is kept
func (h *AdminHandler) RevokeProvider(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return response.BadRequest(c, "INVALID_ID", "Invalid user ID")
	}

	account, err := h.approvalUC.Revoke(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, account)
}

// ReconcileProvider repairs a provider profile that drifted from the account
func (h *AdminHandler) ReconcileProvider(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return response.BadRequest(c, "INVALID_ID", "Invalid user ID")
	}

	profile, err := h.approvalUC.Reconcile(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, profile)
}
