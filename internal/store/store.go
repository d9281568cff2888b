// Package store persists orders and prediction logs behind a driver-agnostic
// interface. A nil Store is a valid degraded deployment: callers substitute
// fixed defaults instead of failing.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campuseats/preptime/internal/model"
)

// ErrOrderNotFound is returned by UpdateOrderPrediction when the order does
// not exist. A domain outcome, not a backend fault.
var ErrOrderNotFound = eris.New("store: order not found")

// Store defines the persistence interface consumed by the prediction and
// training pipelines.
type Store interface {
	// Training data
	FetchRecentOrders(ctx context.Context, statuses []model.OrderStatus, since time.Time) ([]model.HistoricalOrder, error)

	// Vendor context
	CountOrders(ctx context.Context, vendorID string, statuses []model.OrderStatus) (int, error)
	CountOrdersSince(ctx context.Context, vendorID string, since time.Time) (int, error)

	// Prediction side effects
	InsertPredictionLog(ctx context.Context, entry model.PredictionLog) error
	UpdateOrderPrediction(ctx context.Context, orderID string, readyTime time.Time, confidence float64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func statusStrings(statuses []model.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
