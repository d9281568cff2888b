package pipeline

import (
	"context"
	"time"

	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	queueDepth   int
	velocity     int
	orders       []model.HistoricalOrder
	countErr     error
	velocityErr  error
	fetchErr     error
	insertErr    error
	updateErr    error
	insertedLogs []model.PredictionLog
	updatedIDs   []string
}

func (m *mockStore) CountOrders(_ context.Context, _ string, _ []model.OrderStatus) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.queueDepth, nil
}

func (m *mockStore) CountOrdersSince(_ context.Context, _ string, _ time.Time) (int, error) {
	if m.velocityErr != nil {
		return 0, m.velocityErr
	}
	return m.velocity, nil
}

func (m *mockStore) FetchRecentOrders(_ context.Context, _ []model.OrderStatus, _ time.Time) ([]model.HistoricalOrder, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.orders, nil
}

func (m *mockStore) InsertPredictionLog(_ context.Context, entry model.PredictionLog) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.insertedLogs = append(m.insertedLogs, entry)
	return nil
}

func (m *mockStore) UpdateOrderPrediction(_ context.Context, orderID string, _ time.Time, _ float64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedIDs = append(m.updatedIDs, orderID)
	return nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

// mockRegressor implements predictor.Regressor with canned responses.
type mockRegressor struct {
	available  bool
	minutes    float64
	confidence float64
	predictErr error
	trainErr   error
	metrics    *model.TrainingMetrics
	trainCalls int
	lastRows   int
}

func (m *mockRegressor) Available() bool { return m.available }

func (m *mockRegressor) Predict(_ feature.Record) (float64, float64, error) {
	if m.predictErr != nil {
		return 0, 0, m.predictErr
	}
	return m.minutes, m.confidence, nil
}

func (m *mockRegressor) Train(records []feature.Record, _ []float64) (*model.TrainingMetrics, error) {
	m.trainCalls++
	m.lastRows = len(records)
	if m.trainErr != nil {
		return nil, m.trainErr
	}
	return m.metrics, nil
}

func (m *mockRegressor) Load() bool { return m.available }
