package handler

import (
	"log/slog"
	"net/http"

	"darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/response"
	"darshan/internal/domain/entity"
	"darshan/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	ApprovalUC usecase.ApprovalUsecase
	Logger     *slog.Logger
}

// AccountHandler serves the authenticated user's own account
type AccountHandler struct {
	approvalUC usecase.ApprovalUsecase
	logger     *slog.Logger
}

// NewAccountHandler is the constructor for AccountHandler
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{
		approvalUC: params.ApprovalUC,
		logger:     params.Logger,
	}
}

// ProfileResponse is the account plus the roles the current token carries.
type ProfileResponse struct {
	*entity.Account
	Roles []string `json:"roles"`
}

// GetProfile returns the authenticated user's account
func (h *AccountHandler) GetProfile(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	account, err := h.approvalUC.GetAccount(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, ProfileResponse{
		Account: account,
		Roles:   middleware.GetRoles(c).ToStrings(),
	})
}

// SubmitApplication lets the authenticated user apply to become a provider
func (h *AccountHandler) SubmitApplication(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	var req usecase.ApplicationInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	account, err := h.approvalUC.Apply(c.Request().Context(), userID, &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusAccepted, account)
}
