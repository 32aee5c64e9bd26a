package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"darshan/config"
	"darshan/internal/convergence"
	apimiddleware "darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/router/handler"
	"darshan/internal/delivery/api/validator"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/service"
	"darshan/internal/infra/auth"
	"darshan/internal/infra/cache"
	"darshan/internal/infra/qrcode"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingUsecase struct {
	mock.Mock
}

func (m *mockBookingUsecase) Create(ctx context.Context, input *usecase.CreateBookingInput) (*entity.Booking, error) {
	args := m.Called(ctx, input)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, expectedVersion *int64) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID, target, expectedVersion)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Confirm(ctx context.Context, bookingID uuid.UUID, payment *service.PaymentOutcome, expectedVersion *int64) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID, payment, expectedVersion)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Cancel(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID, expectedVersion)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Complete(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID, expectedVersion)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) StartJourney(ctx context.Context, bookingID, actorUserID uuid.UUID) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID, actorUserID)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Get(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	args := m.Called(ctx, bookingID)
	b, _ := args.Get(0).(*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*entity.Booking, error) {
	args := m.Called(ctx, requesterID)
	b, _ := args.Get(0).([]*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) ListForProvider(ctx context.Context, providerUserID uuid.UUID) ([]*entity.Booking, error) {
	args := m.Called(ctx, providerUserID)
	b, _ := args.Get(0).([]*entity.Booking)

	return b, args.Error(1)
}

func (m *mockBookingUsecase) Party(ctx context.Context, booking *entity.Booking, userID uuid.UUID, isAdmin bool) (usecase.BookingParty, error) {
	args := m.Called(ctx, booking, userID, isAdmin)

	return args.Get(0).(usecase.BookingParty), args.Error(1)
}

type mockTrackingUsecase struct {
	mock.Mock
}

func (m *mockTrackingUsecase) ReportPosition(ctx context.Context, bookingID uuid.UUID, input *usecase.ReportPositionInput) (bool, error) {
	args := m.Called(ctx, bookingID, input)

	return args.Bool(0), args.Error(1)
}

func (m *mockTrackingUsecase) SetEstimatedArrival(ctx context.Context, bookingID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, at)

	return args.Bool(0), args.Error(1)
}

func (m *mockTrackingUsecase) CurrentStatus(ctx context.Context, bookingID uuid.UUID) (*entity.TrackingStatus, error) {
	args := m.Called(ctx, bookingID)
	s, _ := args.Get(0).(*entity.TrackingStatus)

	return s, args.Error(1)
}

type mockApprovalUsecase struct {
	mock.Mock
}

func (m *mockApprovalUsecase) Apply(ctx context.Context, userID uuid.UUID, input *usecase.ApplicationInput) (*entity.Account, error) {
	args := m.Called(ctx, userID, input)
	a, _ := args.Get(0).(*entity.Account)

	return a, args.Error(1)
}

func (m *mockApprovalUsecase) Decide(ctx context.Context, userID uuid.UUID, decision entity.ApprovalStatus) (*usecase.DecisionResult, error) {
	args := m.Called(ctx, userID, decision)
	r, _ := args.Get(0).(*usecase.DecisionResult)

	return r, args.Error(1)
}

func (m *mockApprovalUsecase) Revoke(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(*entity.Account)

	return a, args.Error(1)
}

func (m *mockApprovalUsecase) Reconcile(ctx context.Context, userID uuid.UUID) (*entity.ProviderProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*entity.ProviderProfile)

	return p, args.Error(1)
}

func (m *mockApprovalUsecase) ListApplications(ctx context.Context, status entity.ApprovalStatus) ([]*entity.Account, error) {
	args := m.Called(ctx, status)
	a, _ := args.Get(0).([]*entity.Account)

	return a, args.Error(1)
}

func (m *mockApprovalUsecase) GetAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(*entity.Account)

	return a, args.Error(1)
}

type mockPaymentVerifier struct {
	mock.Mock
}

func (m *mockPaymentVerifier) Verify(ctx context.Context, reference string, amount float64) (*service.PaymentOutcome, error) {
	args := m.Called(ctx, reference, amount)
	o, _ := args.Get(0).(*service.PaymentOutcome)

	return o, args.Error(1)
}

type apiEnv struct {
	echo     *echo.Echo
	tokens   service.TokenService
	bookings *mockBookingUsecase
	tracking *mockTrackingUsecase
	approval *mockApprovalUsecase
	payments *mockPaymentVerifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}
	cfg.SecretKey.Access = "test-access-secret"

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	sync := convergence.New(cache.NewMemoryCache(16, time.Minute), logger, convergence.Options{})
	t.Cleanup(sync.Close)

	env := &apiEnv{
		tokens:   tokens,
		bookings: &mockBookingUsecase{},
		tracking: &mockTrackingUsecase{},
		approval: &mockApprovalUsecase{},
		payments: &mockPaymentVerifier{},
	}

	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(logger).HandleHTTPError

	NewRouter(RouterParams{
		BookingHandler: handler.NewBookingHandler(handler.BookingHandlerParams{
			BookingUC:       env.bookings,
			PaymentVerifier: env.payments,
			QRCodeService:   qrcode.NewQRCodeService(256, "M"),
			Logger:          logger,
		}),
		TrackingHandler: handler.NewTrackingHandler(handler.TrackingHandlerParams{
			BookingUC:  env.bookings,
			TrackingUC: env.tracking,
			Sync:       sync,
			Logger:     logger,
		}),
		AccountHandler: handler.NewAccountHandler(handler.AccountHandlerParams{ApprovalUC: env.approval, Logger: logger}),
		AdminHandler:   handler.NewAdminHandler(handler.AdminHandlerParams{ApprovalUC: env.approval, Logger: logger}),
		AuthMiddleware: apimiddleware.NewAuthMiddleware(tokens),
	}).RegisterRoutes(e)

	env.echo = e

	return env
}

func (env *apiEnv) token(t *testing.T, userID uuid.UUID, roles ...entity.Role) string {
	t.Helper()

	token, err := env.tokens.GenerateAccessToken(userID, append(entity.Roles{entity.RoleUser}, roles...).ToStrings())
	require.NoError(t, err)

	return token
}

func (env *apiEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	return rec
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func (env *apiEnv) givenBooking(b *entity.Booking, userID uuid.UUID, party usecase.BookingParty) {
	env.bookings.On("Get", mock.Anything, b.ID).Return(b, nil)
	env.bookings.On("Party", mock.Anything, b, userID, mock.Anything).Return(party, nil)
}

func pendingBooking(requesterID uuid.UUID) *entity.Booking {
	return &entity.Booking{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ProviderID:  uuid.New(),
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Purpose:     "Satyanarayan Puja",
		Address:     "12 Temple Road",
		Price:       1500,
		Status:      entity.BookingStatusPending,
		Version:     1,
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodGet, "/bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodGet, "/bookings", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Error.Code)
}

func TestCreateBooking_UsesTokenUserAsRequester(t *testing.T) {
	env := newAPIEnv(t)
	userID := uuid.New()
	providerID := uuid.New()
	created := pendingBooking(userID)

	env.bookings.On("Create", mock.Anything, mock.MatchedBy(func(in *usecase.CreateBookingInput) bool {
		return in.RequesterID == userID && in.ProviderID == providerID && in.Payment == nil
	})).Return(created, nil).Once()

	body := `{"provider_id":"` + providerID.String() + `","scheduled_at":"2030-01-02T10:00:00Z","purpose":"Havan","address":"12 Temple Road"}`
	rec := env.do(http.MethodPost, "/bookings", env.token(t, userID), body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID.String())
	env.bookings.AssertExpectations(t)
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	env := newAPIEnv(t)
	token := env.token(t, uuid.New())

	rec := env.do(http.MethodPost, "/bookings", token, `{"provider_id":"`+uuid.NewString()+`","scheduled_at":"2030-01-02T10:00:00Z","address":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Details, "purpose")

	rec = env.do(http.MethodPost, "/bookings", token, `{"provider_id":"`+uuid.NewString()+`","scheduled_at":"2030-01-02T10:00:00Z","purpose":"Havan","address":"x","payment_ref":"pi_1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Details, "price")

	rec = env.do(http.MethodPost, "/bookings", token, `{"provider_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Error.Code)

	env.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBooking_VerifiesPaymentUpFront(t *testing.T) {
	env := newAPIEnv(t)
	userID := uuid.New()
	outcome := &service.PaymentOutcome{Reference: "pi_1", Amount: 2100}

	env.payments.On("Verify", mock.Anything, "pi_1", 2100.0).Return(outcome, nil).Once()
	env.bookings.On("Create", mock.Anything, mock.MatchedBy(func(in *usecase.CreateBookingInput) bool {
		return in.Payment == outcome && in.Price != nil && *in.Price == 2100
	})).Return(pendingBooking(userID), nil).Once()

	body := `{"provider_id":"` + uuid.NewString() + `","scheduled_at":"2030-01-02T10:00:00Z","purpose":"Havan","address":"x","price":2100,"payment_ref":"pi_1"}`
	rec := env.do(http.MethodPost, "/bookings", env.token(t, userID), body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env.payments.AssertExpectations(t)
	env.bookings.AssertExpectations(t)
}

func TestBookingAccess(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	stranger := uuid.New()
	booking := pendingBooking(requester)

	env.givenBooking(booking, requester, usecase.PartyRequester)
	env.givenBooking(booking, stranger, usecase.PartyNone)

	// a stranger cannot tell the booking exists
	rec := env.do(http.MethodGet, "/bookings/"+booking.ID.String(), env.token(t, stranger), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BOOKING_NOT_FOUND", decodeError(t, rec).Error.Code)

	// only the provider or an admin completes
	rec = env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/complete", env.token(t, requester), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/bookings/not-a-uuid", env.token(t, requester), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec).Error.Code)

	env.bookings.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBooking_VerifiesPaymentAgainstBookingPrice(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	booking := pendingBooking(requester)
	outcome := &service.PaymentOutcome{Reference: "pi_2", Amount: booking.Price}
	confirmed := *booking
	confirmed.Status = entity.BookingStatusConfirmed
	confirmed.Version = 2

	env.givenBooking(booking, requester, usecase.PartyRequester)
	env.payments.On("Verify", mock.Anything, "pi_2", booking.Price).Return(outcome, nil).Once()
	env.bookings.On("Confirm", mock.Anything, booking.ID, outcome, mock.MatchedBy(func(v *int64) bool {
		return v != nil && *v == 1
	})).Return(&confirmed, nil).Once()

	rec := env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/confirm", env.token(t, requester), `{"payment_ref":"pi_2","expected_version":1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
	env.bookings.AssertExpectations(t)
}

func TestTransitionErrorsMapToStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	booking := pendingBooking(requester)

	env.givenBooking(booking, requester, usecase.PartyRequester)
	env.bookings.On("Confirm", mock.Anything, booking.ID, (*service.PaymentOutcome)(nil), (*int64)(nil)).
		Return(nil, domainerrors.ErrPaymentRequired).Once()
	env.bookings.On("Cancel", mock.Anything, booking.ID, (*int64)(nil)).
		Return(nil, domainerrors.ErrInvalidTransition.WrapMessage("booking is completed")).Once()

	rec := env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/confirm", env.token(t, requester), "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "PAYMENT_REQUIRED", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/cancel", env.token(t, requester), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)
	assert.Equal(t, "booking is completed", body.Error.Details)
}

func TestBookingPass(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	pending := pendingBooking(requester)
	confirmed := pendingBooking(requester)
	confirmed.Status = entity.BookingStatusConfirmed

	env.givenBooking(pending, requester, usecase.PartyRequester)
	env.givenBooking(confirmed, requester, usecase.PartyRequester)

	rec := env.do(http.MethodGet, "/bookings/"+pending.ID.String()+"/pass", env.token(t, requester), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/bookings/"+confirmed.ID.String()+"/pass", env.token(t, requester), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestReportLocation_ProviderOnly(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	providerUser := uuid.New()
	booking := pendingBooking(requester)
	booking.Status = entity.BookingStatusConfirmed

	env.givenBooking(booking, requester, usecase.PartyRequester)
	env.givenBooking(booking, providerUser, usecase.PartyProvider)
	env.tracking.On("ReportPosition", mock.Anything, booking.ID, mock.MatchedBy(func(in *usecase.ReportPositionInput) bool {
		return in.Latitude == 19.07 && in.Longitude == 72.87
	})).Return(false, nil).Once()

	rec := env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/location", env.token(t, requester), `{"latitude":19.07,"longitude":72.87}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/location", env.token(t, providerUser, entity.RoleProvider), `{"latitude":19.07,"longitude":72.87}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":false`)

	rec = env.do(http.MethodPost, "/bookings/"+booking.ID.String()+"/location", env.token(t, providerUser, entity.RoleProvider), `{"latitude":91,"longitude":72.87}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.tracking.AssertExpectations(t)
}

func TestStreamTracking_EndsOnArrival(t *testing.T) {
	env := newAPIEnv(t)
	requester := uuid.New()
	booking := pendingBooking(requester)
	booking.Status = entity.BookingStatusCompleted

	env.givenBooking(booking, requester, usecase.PartyRequester)
	env.tracking.On("CurrentStatus", mock.Anything, booking.ID).Return(&entity.TrackingStatus{
		BookingID: booking.ID,
		Phase:     entity.TrackingPhaseArrived,
		ETA:       "Arrived",
	}, nil).Once()

	rec := env.do(http.MethodGet, "/bookings/"+booking.ID.String()+"/tracking/stream", env.token(t, requester), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "event: status\ndata: ")
	assert.Contains(t, rec.Body.String(), `"phase":"arrived"`)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodGet, "/admin/applications", env.token(t, uuid.New(), entity.RoleProvider), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env.approval.AssertNotCalled(t, "ListApplications", mock.Anything, mock.Anything)
}

func TestDecideApplication(t *testing.T) {
	env := newAPIEnv(t)
	admin := env.token(t, uuid.New(), entity.RoleAdmin)
	applicant := uuid.New()
	approved := entity.ApprovalStatusApproved

	env.approval.On("Decide", mock.Anything, applicant, entity.ApprovalStatusApproved).Return(&usecase.DecisionResult{
		Account: &entity.Account{ID: applicant, IsProvider: true, ApplicationStatus: &approved},
		Warning: domainerrors.ErrPartialFailure.WrapMessage("profile write failed"),
	}, nil).Once()

	rec := env.do(http.MethodPost, "/admin/applications/"+applicant.String()+"/decision", admin, `{"decision":"approved"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"PARTIAL_FAILURE"`)

	rec = env.do(http.MethodPost, "/admin/applications/"+applicant.String()+"/decision", admin, `{"decision":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)

	env.approval.AssertExpectations(t)
}

func TestSubmitApplication(t *testing.T) {
	env := newAPIEnv(t)
	userID := uuid.New()
	pending := entity.ApprovalStatusPending

	env.approval.On("Apply", mock.Anything, userID, mock.MatchedBy(func(in *usecase.ApplicationInput) bool {
		return in.Name == "Pandit Sharma" && len(in.Specialties) == 2
	})).Return(&entity.Account{ID: userID, ApplicationStatus: &pending}, nil).Once()

	rec := env.do(http.MethodPost, "/me/application", env.token(t, userID), `{"name":"Pandit Sharma","specialties":["Havan","Puja"],"price":1100}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"application_status":"pending"`)
	env.approval.AssertExpectations(t)
}
