package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListStartedIncomplete(ctx context.Context) ([]models.TripTracking, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TripTracking), args.Error(1)
}

func (m *MockStore) SaveTracking(ctx context.Context, t *models.TripTracking) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockStore) AppendStatusLog(ctx context.Context, entry *models.TripStatusLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTripStatusChanged(entry models.TripStatusLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func newTestEvaluator(store *MockStore, kafka *MockPublisher) *Evaluator {
	return NewEvaluator(store, kafka, logger.NewTestLogger(), 2*time.Minute, 6*time.Minute)
}

func TestClassifyBands(t *testing.T) {
	e := newTestEvaluator(new(MockStore), new(MockPublisher))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		lastSeen time.Duration
		want     models.TrackingStatus
	}{
		{"fresh update", 30 * time.Second, models.TrackingActive},
		{"just under sleep threshold", 119 * time.Second, models.TrackingActive},
		{"at sleep threshold", 2 * time.Minute, models.TrackingSleep},
		{"between thresholds", 4 * time.Minute, models.TrackingSleep},
		{"at offline threshold", 6 * time.Minute, models.TrackingSleep},
		{"past offline threshold", 7 * time.Minute, models.TrackingOffline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracking := models.TripTracking{TripID: "trip-1", LastPositionUpdate: now.Add(-tc.lastSeen)}
			assert.Equal(t, tc.want, e.Classify(tracking, now))
		})
	}
}

func TestClassifyNoPositionEver(t *testing.T) {
	e := newTestEvaluator(new(MockStore), new(MockPublisher))

	tracking := models.TripTracking{TripID: "trip-1", Started: true}
	assert.Equal(t, models.TrackingNotStarted, e.Classify(tracking, time.Now()))
}

func TestEvaluateAllTransitions(t *testing.T) {
	store := new(MockStore)
	kafka := new(MockPublisher)
	e := newTestEvaluator(store, kafka)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }

	trips := []models.TripTracking{
		// Went quiet: active -> sleep.
		{TripID: "trip-sleepy", Status: models.TrackingActive, Started: true, LastPositionUpdate: now.Add(-3 * time.Minute)},
		// Still reporting: no transition, nothing written.
		{TripID: "trip-fine", Status: models.TrackingActive, Started: true, LastPositionUpdate: now.Add(-30 * time.Second)},
		// Dark for too long: sleep -> offline with the connectivity flag.
		{TripID: "trip-dark", Status: models.TrackingSleep, Started: true, LastPositionUpdate: now.Add(-10 * time.Minute)},
	}
	store.On("ListStartedIncomplete").Return(trips, nil)

	store.On("SaveTracking", mock.MatchedBy(func(tt *models.TripTracking) bool {
		return tt.TripID == "trip-sleepy" && tt.Status == models.TrackingSleep && !tt.ConnectivityIssue
	})).Return(nil)
	store.On("SaveTracking", mock.MatchedBy(func(tt *models.TripTracking) bool {
		return tt.TripID == "trip-dark" && tt.Status == models.TrackingOffline && tt.ConnectivityIssue
	})).Return(nil)

	store.On("AppendStatusLog", mock.MatchedBy(func(entry *models.TripStatusLog) bool {
		return entry.TripID == "trip-sleepy" &&
			entry.PreviousStatus == models.TrackingActive &&
			entry.NewStatus == models.TrackingSleep &&
			entry.Actor == "system" &&
			entry.Timestamp.Equal(now)
	})).Return(nil)
	store.On("AppendStatusLog", mock.MatchedBy(func(entry *models.TripStatusLog) bool {
		return entry.TripID == "trip-dark" && entry.NewStatus == models.TrackingOffline
	})).Return(nil)

	kafka.On("PublishTripStatusChanged", mock.AnythingOfType("models.TripStatusLog")).Return(nil).Times(2)

	require.NoError(t, e.EvaluateAll(context.Background()))

	store.AssertExpectations(t)
	kafka.AssertExpectations(t)
	// The quiet trip that kept reporting was never touched.
	store.AssertNotCalled(t, "SaveTracking", mock.MatchedBy(func(tt *models.TripTracking) bool {
		return tt.TripID == "trip-fine"
	}))
}

func TestEvaluateAllSaveFailureSkipsAuditEntry(t *testing.T) {
	store := new(MockStore)
	kafka := new(MockPublisher)
	e := newTestEvaluator(store, kafka)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }

	trips := []models.TripTracking{
		{TripID: "trip-1", Status: models.TrackingActive, Started: true, LastPositionUpdate: now.Add(-10 * time.Minute)},
	}
	store.On("ListStartedIncomplete").Return(trips, nil)
	store.On("SaveTracking", mock.AnythingOfType("*models.TripTracking")).Return(assert.AnError)

	require.NoError(t, e.EvaluateAll(context.Background()))

	// No audit entry for a transition that never persisted.
	store.AssertNotCalled(t, "AppendStatusLog", mock.Anything)
	kafka.AssertNotCalled(t, "PublishTripStatusChanged", mock.Anything)
}
