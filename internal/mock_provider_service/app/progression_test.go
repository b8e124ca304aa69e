package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/repository/memory"
)

const (
	registeredNumber = "+15551234567"
	failureNumber    = "+15559999999"
	unlistedNumber   = "+15557777777"
)

type MockCallbackSender struct {
	mock.Mock
}

func (m *MockCallbackSender) DeliverWithRetry(ctx context.Context, targetURL string, payload CallbackPayload) (bool, error) {
	args := m.Called(ctx, targetURL, payload)
	return args.Bool(0), args.Error(1)
}

type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) UpdateStatus(ctx context.Context, kind domain.ResourceKind, sid string, status domain.Status) error {
	return m.Called(ctx, kind, sid, status).Error(0)
}

func (m *MockStatusStore) CreateDeliveryEvent(ctx context.Context, event *domain.DeliveryEvent) error {
	return m.Called(ctx, event).Error(0)
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []domain.Status
	err      error
}

func (p *recordingPublisher) PublishDeliveryEvent(_ context.Context, _ *domain.Resource, event *domain.DeliveryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, event.Status)
	return p.err
}

func testSettings(callbacks bool) ProgressionSettings {
	return ProgressionSettings{
		AccountSID:        "AC123",
		CallbacksEnabled:  callbacks,
		StatusDelay:       2 * time.Second,
		RegisteredNumbers: NewNumberSet(registeredNumber),
		FailureNumbers:    NewNumberSet(failureNumber),
	}
}

func createResource(t *testing.T, repo *memory.Repository, res *domain.Resource) *domain.Resource {
	t.Helper()
	require.NoError(t, repo.CreateResource(context.Background(), res))
	return res
}

func eventStatuses(t *testing.T, repo *memory.Repository, res *domain.Resource) []domain.Status {
	t.Helper()
	events, err := repo.ListDeliveryEvents(context.Background(), res.Kind, res.SID)
	require.NoError(t, err)
	out := make([]domain.Status, 0, len(events))
	for _, e := range events {
		out = append(out, e.Status)
	}
	return out
}

func TestProgressionDriver_MessageSuccessWithCallbacks(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		received = append(received, r.PostForm.Get("MessageStatus"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := memory.New()
	sleeper := &recordingSleeper{}
	retrier := NewRetrier(NewWebhookClient(repo, discardLogger()), RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}, sleeper.Sleep, discardLogger())
	driver := NewProgressionDriver(repo, retrier, testSettings(true), discardLogger(), WithSleep(sleeper.Sleep))

	msg := createResource(t, repo, domain.NewMessage("AC123", "+15550000000", registeredNumber, "hi", srv.URL, time.Now()))

	require.NoError(t, driver.Run(context.Background(), msg))

	assert.Equal(t, []string{"sent", "delivered"}, received)
	assert.Equal(t, []domain.Status{domain.StatusSent, domain.StatusDelivered}, eventStatuses(t, repo, msg))
	// initial delay plus one between the two transitions
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.Calls())

	stored, err := repo.GetResource(context.Background(), domain.ResourceKindMessage, msg.SID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)

	events, _ := repo.ListDeliveryEvents(context.Background(), msg.Kind, msg.SID)
	for _, e := range events {
		assert.True(t, e.CallbackSent)
		assert.Equal(t, domain.EventTypeStatusUpdate, e.EventType)
	}
}

func TestProgressionDriver_Sequences(t *testing.T) {
	tests := []struct {
		name  string
		res   *domain.Resource
		want  []domain.Status
		waits int
	}{
		{
			name:  "message to failure number",
			res:   domain.NewMessage("AC123", "+1", failureNumber, "x", "", time.Now()),
			want:  []domain.Status{domain.StatusFailed},
			waits: 1,
		},
		{
			name:  "call to registered number",
			res:   domain.NewCall("AC123", "+1", registeredNumber, "http://twiml", "", time.Now()),
			want:  []domain.Status{domain.StatusRinging, domain.StatusInProgress, domain.StatusCompleted},
			waits: 3,
		},
		{
			name:  "call to failure number",
			res:   domain.NewCall("AC123", "+1", failureNumber, "http://twiml", "", time.Now()),
			want:  []domain.Status{domain.StatusFailed},
			waits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.New()
			sender := new(MockCallbackSender)
			sleeper := &recordingSleeper{}
			driver := NewProgressionDriver(repo, sender, testSettings(true), discardLogger(), WithSleep(sleeper.Sleep))
			res := createResource(t, repo, tt.res)

			require.NoError(t, driver.Run(context.Background(), res))

			assert.Equal(t, tt.want, eventStatuses(t, repo, res))
			assert.Len(t, sleeper.Calls(), tt.waits)
			sender.AssertNotCalled(t, "DeliverWithRetry", mock.Anything, mock.Anything, mock.Anything)

			stored, err := repo.GetResource(context.Background(), res.Kind, res.SID)
			require.NoError(t, err)
			assert.Equal(t, tt.want[len(tt.want)-1], stored.Status)
		})
	}
}

func TestProgressionDriver_UnlistedStaysQueued(t *testing.T) {
	repo := memory.New()
	sender := new(MockCallbackSender)
	sleeper := &recordingSleeper{}
	driver := NewProgressionDriver(repo, sender, testSettings(true), discardLogger(), WithSleep(sleeper.Sleep))

	msg := createResource(t, repo, domain.NewMessage("AC123", "+1", unlistedNumber, "x", "http://cb", time.Now()))

	require.NoError(t, driver.Run(context.Background(), msg))

	assert.Empty(t, sleeper.Calls())
	assert.Empty(t, eventStatuses(t, repo, msg))
	sender.AssertNotCalled(t, "DeliverWithRetry", mock.Anything, mock.Anything, mock.Anything)

	stored, err := repo.GetResource(context.Background(), msg.Kind, msg.SID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, stored.Status)
}

func TestProgressionDriver_FailureSendsOnlyFailedCallback(t *testing.T) {
	tests := []struct {
		name      string
		res       *domain.Resource
		statusKey string
	}{
		{"message", domain.NewMessage("AC123", "+1", failureNumber, "x", "http://cb", time.Now()), "MessageStatus"},
		{"call", domain.NewCall("AC123", "+1", failureNumber, "http://twiml", "http://cb", time.Now()), "CallStatus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.New()
			sender := new(MockCallbackSender)
			sender.On("DeliverWithRetry", mock.Anything, "http://cb", mock.MatchedBy(func(p CallbackPayload) bool {
				return p[tt.statusKey] == "failed"
			})).Return(true, nil).Once()
			sleeper := &recordingSleeper{}
			driver := NewProgressionDriver(repo, sender, testSettings(true), discardLogger(), WithSleep(sleeper.Sleep))
			res := createResource(t, repo, tt.res)

			require.NoError(t, driver.Run(context.Background(), res))

			sender.AssertExpectations(t)
			sender.AssertNumberOfCalls(t, "DeliverWithRetry", 1)
			assert.Equal(t, []domain.Status{domain.StatusFailed}, eventStatuses(t, repo, res))
			assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.Calls())
		})
	}
}

func TestProgressionDriver_CallbacksDisabled(t *testing.T) {
	repo := memory.New()
	sender := new(MockCallbackSender)
	driver := NewProgressionDriver(repo, sender, testSettings(false), discardLogger(), WithSleep((&recordingSleeper{}).Sleep))

	msg := createResource(t, repo, domain.NewMessage("AC123", "+1", registeredNumber, "x", "http://cb", time.Now()))

	require.NoError(t, driver.Run(context.Background(), msg))

	assert.Equal(t, []domain.Status{domain.StatusSent, domain.StatusDelivered}, eventStatuses(t, repo, msg))
	sender.AssertNotCalled(t, "DeliverWithRetry", mock.Anything, mock.Anything, mock.Anything)
	logs, _ := repo.ListCallbackLogs(context.Background(), 0, 0)
	assert.Empty(t, logs)
}

func TestProgressionDriver_FailedCallbackDoesNotStopRun(t *testing.T) {
	repo := memory.New()
	sender := new(MockCallbackSender)
	sender.On("DeliverWithRetry", mock.Anything, "http://cb", mock.Anything).Return(false, nil).Times(2)
	driver := NewProgressionDriver(repo, sender, testSettings(true), discardLogger(), WithSleep((&recordingSleeper{}).Sleep))

	msg := createResource(t, repo, domain.NewMessage("AC123", "+1", registeredNumber, "x", "http://cb", time.Now()))

	require.NoError(t, driver.Run(context.Background(), msg))

	assert.Equal(t, []domain.Status{domain.StatusSent, domain.StatusDelivered}, eventStatuses(t, repo, msg))
	events, _ := repo.ListDeliveryEvents(context.Background(), msg.Kind, msg.SID)
	for _, e := range events {
		assert.False(t, e.CallbackSent)
	}
	sender.AssertExpectations(t)
}

func TestProgressionDriver_CallbackPayloadPerStatus(t *testing.T) {
	repo := memory.New()
	sender := new(MockCallbackSender)
	var statuses []string
	sender.On("DeliverWithRetry", mock.Anything, "http://cb", mock.Anything).
		Run(func(args mock.Arguments) {
			statuses = append(statuses, args.Get(2).(CallbackPayload)["CallStatus"])
		}).Return(true, nil)
	driver := NewProgressionDriver(repo, sender, testSettings(true), discardLogger(), WithSleep((&recordingSleeper{}).Sleep))

	call := createResource(t, repo, domain.NewCall("AC123", "+1", registeredNumber, "http://twiml", "http://cb", time.Now()))

	require.NoError(t, driver.Run(context.Background(), call))
	assert.Equal(t, []string{"ringing", "in-progress", "completed"}, statuses)
}

func TestProgressionDriver_PersistenceFaultStopsRun(t *testing.T) {
	store := new(MockStatusStore)
	sender := new(MockCallbackSender)
	dbErr := errors.New("connection reset")

	msg := domain.NewMessage("AC123", "+1", registeredNumber, "x", "", time.Now())
	store.On("UpdateStatus", mock.Anything, domain.ResourceKindMessage, msg.SID, domain.StatusSent).Return(nil).Once()
	store.On("CreateDeliveryEvent", mock.Anything, mock.AnythingOfType("*domain.DeliveryEvent")).Return(nil).Once()
	store.On("UpdateStatus", mock.Anything, domain.ResourceKindMessage, msg.SID, domain.StatusDelivered).Return(dbErr).Once()

	driver := NewProgressionDriver(store, sender, testSettings(true), discardLogger(), WithSleep((&recordingSleeper{}).Sleep))

	err := driver.Run(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	store.AssertExpectations(t)
}

func TestProgressionDriver_ResourceClearedMidRun(t *testing.T) {
	repo := memory.New()
	driver := NewProgressionDriver(repo, new(MockCallbackSender), testSettings(true), discardLogger(), WithSleep((&recordingSleeper{}).Sleep))

	// never stored
	msg := domain.NewMessage("AC123", "+1", registeredNumber, "x", "", time.Now())

	err := driver.Run(context.Background(), msg)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProgressionDriver_CancelledDuringDelay(t *testing.T) {
	repo := memory.New()
	driver := NewProgressionDriver(repo, new(MockCallbackSender), testSettings(true), discardLogger())
	msg := createResource(t, repo, domain.NewMessage("AC123", "+1", registeredNumber, "x", "", time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.Run(ctx, msg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, eventStatuses(t, repo, msg))
}

func TestProgressionDriver_PublishesEvents(t *testing.T) {
	repo := memory.New()
	publisher := &recordingPublisher{err: errors.New("nats unavailable")}
	driver := NewProgressionDriver(repo, new(MockCallbackSender), testSettings(false), discardLogger(),
		WithSleep((&recordingSleeper{}).Sleep), WithEventPublisher(publisher))

	call := createResource(t, repo, domain.NewCall("AC123", "+1", failureNumber, "http://twiml", "", time.Now()))

	require.NoError(t, driver.Run(context.Background(), call))
	assert.Equal(t, []domain.Status{domain.StatusFailed}, publisher.statuses)
}
