package impl

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"darshan/internal/convergence"
	"darshan/internal/domain/entity"
	"darshan/internal/domain/repository"
	"darshan/internal/domain/service"
	"darshan/internal/infra/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory stand-in for the primary and its replicas.
type fakeStore struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]entity.Booking
	accounts  map[uuid.UUID]entity.Account
	profiles  map[uuid.UUID]entity.ProviderProfile
	samples   map[uuid.UUID]entity.LocationSample
	createErr error // returned by CreateProviderProfile when set
	mirrorErr error // returned by UpdateProviderApprovalStatus when set
	// beforeUpdate runs inside UpdateBookingConditionally before the version check.
	beforeUpdate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: make(map[uuid.UUID]entity.Booking),
		accounts: make(map[uuid.UUID]entity.Account),
		profiles: make(map[uuid.UUID]entity.ProviderProfile),
		samples:  make(map[uuid.UUID]entity.LocationSample),
	}
}

func (s *fakeStore) addAccount(a entity.Account) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.accounts[a.ID] = a

	return &a
}

func (s *fakeStore) addProvider(price float64) (*entity.Account, *entity.ProviderProfile) {
	approved := entity.ApprovalStatusApproved
	owner := s.addAccount(entity.Account{Name: "Pandit", IsProvider: true, ApplicationStatus: &approved})

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := entity.ProviderProfile{
		ID:             uuid.New(),
		UserID:         owner.ID,
		Name:           owner.Name,
		Price:          price,
		ApprovalStatus: entity.ApprovalStatusApproved,
	}
	s.profiles[profile.ID] = profile

	return owner, &profile
}

func (s *fakeStore) booking(id uuid.UUID) entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bookings[id]
}

func (s *fakeStore) account(id uuid.UUID) entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accounts[id]
}

func (s *fakeStore) profileOf(userID uuid.UUID) (entity.ProviderProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.UserID == userID {
			return p, true
		}
	}

	return entity.ProviderProfile{}, false
}

// BookingRepository

func (s *fakeStore) CreateBooking(_ context.Context, b *entity.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = uuid.New()
	b.Version = 1
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	s.bookings[b.ID] = *b

	return nil
}

func (s *fakeStore) FindBookingByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return s.FindBookingByIDForWrite(ctx, id)
}

func (s *fakeStore) FindBookingByIDForWrite(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}

	return &b, nil
}

func (s *fakeStore) UpdateBookingConditionally(_ context.Context, u repository.BookingUpdate) (*entity.Booking, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[u.ID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if b.Status != u.ExpectedStatus || b.Version != u.ExpectedVersion {
		return nil, repository.ErrBookingVersionMismatch
	}

	b.Status = u.Status
	b.JourneyStarted = u.JourneyStarted
	if u.PaymentRef != nil {
		b.PaymentRef = u.PaymentRef
	}
	b.Version++
	b.UpdatedAt = time.Now()
	s.bookings[u.ID] = b

	return &b, nil
}

func (s *fakeStore) FindBookingsByRequester(_ context.Context, requesterID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return s.listBookings(func(b entity.Booking) bool { return b.RequesterID == requesterID }, limit, offset), nil
}

func (s *fakeStore) FindBookingsByProvider(_ context.Context, providerID uuid.UUID, statuses []entity.BookingStatus, limit, offset int) ([]*entity.Booking, error) {
	return s.listBookings(func(b entity.Booking) bool {
		return b.ProviderID == providerID && (len(statuses) == 0 || slices.Contains(statuses, b.Status))
	}, limit, offset), nil
}

func (s *fakeStore) listBookings(match func(entity.Booking) bool, limit, offset int) []*entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.Booking, 0)
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, &b)
		}
	}
	slices.SortFunc(out, func(a, b *entity.Booking) int { return a.ScheduledAt.Compare(b.ScheduledAt) })

	if offset >= len(out) {
		return []*entity.Booking{}
	}

	return out[offset:min(len(out), offset+limit)]
}

// AccountRepository

type fakeAccounts struct{ *fakeStore }

func (r fakeAccounts) FindAccountByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return r.FindAccountByIDForWrite(ctx, id)
}

func (r fakeAccounts) FindAccountByIDForWrite(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return &a, nil
}

func (r fakeAccounts) SubmitApplication(_ context.Context, id uuid.UUID, app *entity.ProviderApplication, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	pending := entity.ApprovalStatusPending
	a.Application = app
	a.ApplicationStatus = &pending
	a.AppliedAt = &at
	a.DecidedAt = nil
	r.accounts[id] = a

	return nil
}

func (r fakeAccounts) UpdateProviderAccess(_ context.Context, id uuid.UUID, isProvider bool, status *entity.ApprovalStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.IsProvider = isProvider
	a.ApplicationStatus = status
	a.DecidedAt = &at
	r.accounts[id] = a

	return nil
}

func (r fakeAccounts) FindAccountsByApplicationStatus(_ context.Context, status entity.ApprovalStatus, _, _ int) ([]*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.Account, 0)
	for _, a := range r.accounts {
		if a.ApplicationState() == status {
			out = append(out, &a)
		}
	}

	return out, nil
}

// ProviderProfileRepository

type fakeProfiles struct{ *fakeStore }

func (r fakeProfiles) CreateProviderProfile(_ context.Context, p *entity.ProviderProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.profiles {
		if existing.UserID == p.UserID {
			return repository.ErrProviderProfileExists
		}
	}
	p.ID = uuid.New()
	r.profiles[p.ID] = *p

	return nil
}

func (r fakeProfiles) FindProviderProfileByID(_ context.Context, id uuid.UUID) (*entity.ProviderProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrProviderProfileNotFound
	}

	return &p, nil
}

func (r fakeProfiles) FindProviderProfileByUserID(_ context.Context, userID uuid.UUID) (*entity.ProviderProfile, error) {
	p, ok := r.profileOf(userID)
	if !ok {
		return nil, repository.ErrProviderProfileNotFound
	}

	return &p, nil
}

func (r fakeProfiles) UpdateProviderApprovalStatus(_ context.Context, userID uuid.UUID, status entity.ApprovalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mirrorErr != nil {
		return r.mirrorErr
	}
	for id, p := range r.profiles {
		if p.UserID == userID {
			p.ApprovalStatus = status
			r.profiles[id] = p

			return nil
		}
	}

	return repository.ErrProviderProfileNotFound
}

// LocationSampleRepository

type fakeSamples struct{ *fakeStore }

func (r fakeSamples) SaveLatestSample(_ context.Context, sample *entity.LocationSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[sample.BookingID] = *sample

	return nil
}

func (r fakeSamples) FindLatestSample(_ context.Context, bookingID uuid.UUID) (*entity.LocationSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample, ok := r.samples[bookingID]
	if !ok {
		return nil, repository.ErrLocationSampleNotFound
	}

	return &sample, nil
}

func (r fakeSamples) DeleteSample(_ context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.samples, bookingID)

	return nil
}

// TransactionManager

type fakeTxManager struct{ store *fakeStore }

func (m fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m)
}

func (m fakeTxManager) NewBookingRepository() repository.BookingRepository { return m.store }

func (m fakeTxManager) NewAccountRepository() repository.AccountRepository {
	return fakeAccounts{m.store}
}

func (m fakeTxManager) NewProviderProfileRepository() repository.ProviderProfileRepository {
	return fakeProfiles{m.store}
}

// mockPublisher records published notification events.
type mockPublisher struct {
	mock.Mock

	mu     sync.Mutex
	events []*service.NotificationEvent
}

func (m *mockPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	args := m.Called(ctx, event)

	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) published(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, event := range m.events {
		if event.Type == eventType {
			count++
		}
	}

	return count
}

// testEnv wires real services over the fake store.
type testEnv struct {
	store     *fakeStore
	cache     service.ViewCache
	sync      *convergence.Synchronizer
	publisher *mockPublisher
	views     *viewService
	bookings  *bookingService
	approvals *approvalService
	tracking  *trackingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	logger := discardLogger()
	viewCache := cache.NewMemoryCache(256, time.Minute)
	synchronizer := convergence.New(viewCache, logger, convergence.Options{
		Ladder:      []time.Duration{time.Millisecond, 2 * time.Millisecond},
		StepTimeout: time.Second,
	})
	t.Cleanup(synchronizer.Close)

	publisher := &mockPublisher{}
	publisher.On("PublishNotificationEvent", mock.Anything, mock.Anything).Return(nil)

	views := &viewService{
		bookingRepo: store,
		accountRepo: fakeAccounts{store},
		cache:       viewCache,
		ttl:         time.Minute,
		logger:      logger,
	}

	env := &testEnv{
		store:     store,
		cache:     viewCache,
		sync:      synchronizer,
		publisher: publisher,
		views:     views,
	}

	env.bookings = &bookingService{
		txManager:         fakeTxManager{store},
		bookingRepo:       store,
		profileRepo:       fakeProfiles{store},
		locationRepo:      fakeSamples{store},
		views:             views,
		sync:              synchronizer,
		notifier:          newNotifier(publisher, logger),
		scheduleTolerance: time.Minute,
		now:               time.Now,
		logger:            logger,
	}
	env.approvals = &approvalService{
		accountRepo: fakeAccounts{store},
		profileRepo: fakeProfiles{store},
		views:       views,
		sync:        synchronizer,
		inFlight:    convergence.NewInFlight(),
		notifier:    newNotifier(publisher, logger),
		now:         time.Now,
		logger:      logger,
	}
	env.tracking = &trackingService{
		bookingRepo:  store,
		locationRepo: fakeSamples{store},
		sync:         synchronizer,
		now:          time.Now,
		logger:       logger,
	}

	return env
}
