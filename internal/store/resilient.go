package store

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/model"
)

// ErrStoreUnavailable is returned when the breaker is open and calls are
// rejected without touching the backend.
var ErrStoreUnavailable = eris.New("store: backend unavailable, breaker open")

const (
	breakerFailureThreshold = 5
	breakerResetTimeout     = 30 * time.Second
)

// breaker is a minimal circuit breaker: consecutive failures open it, after
// the reset timeout a single call probes the backend.
type breaker struct {
	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < breakerFailureThreshold {
		return true
	}
	if b.now().Sub(b.openedAt) >= breakerResetTimeout {
		// Probe: count this call as the one allowed attempt. A failure
		// re-opens the window from now.
		b.openedAt = b.now()
		return true
	}
	return false
}

func (b *breaker) record(err error) {
	// Domain outcomes like a missing order say nothing about backend health.
	if eris.Is(err, ErrOrderNotFound) {
		err = nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.failures >= breakerFailureThreshold {
			zap.L().Info("store: backend recovered, breaker closed")
		}
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == breakerFailureThreshold {
		b.openedAt = b.now()
		zap.L().Warn("store: breaker opened after consecutive failures",
			zap.Int("failures", b.failures),
		)
	}
}

// ResilientStore wraps a Store with a circuit breaker so a dead backend
// fails fast instead of stalling every prediction on connection timeouts.
// Callers already treat store errors as degradable; the breaker only changes
// how quickly those errors surface.
type ResilientStore struct {
	inner Store
	br    breaker
}

// WithBreaker wraps st. A nil st returns nil, preserving degraded-mode
// checks downstream.
func WithBreaker(st Store) Store {
	if st == nil {
		return nil
	}
	rs := &ResilientStore{inner: st}
	rs.br.now = time.Now
	return rs
}

func (s *ResilientStore) FetchRecentOrders(ctx context.Context, statuses []model.OrderStatus, since time.Time) ([]model.HistoricalOrder, error) {
	if !s.br.allow() {
		return nil, ErrStoreUnavailable
	}
	orders, err := s.inner.FetchRecentOrders(ctx, statuses, since)
	s.br.record(err)
	return orders, err
}

func (s *ResilientStore) CountOrders(ctx context.Context, vendorID string, statuses []model.OrderStatus) (int, error) {
	if !s.br.allow() {
		return 0, ErrStoreUnavailable
	}
	n, err := s.inner.CountOrders(ctx, vendorID, statuses)
	s.br.record(err)
	return n, err
}

func (s *ResilientStore) CountOrdersSince(ctx context.Context, vendorID string, since time.Time) (int, error) {
	if !s.br.allow() {
		return 0, ErrStoreUnavailable
	}
	n, err := s.inner.CountOrdersSince(ctx, vendorID, since)
	s.br.record(err)
	return n, err
}

func (s *ResilientStore) InsertPredictionLog(ctx context.Context, entry model.PredictionLog) error {
	if !s.br.allow() {
		return ErrStoreUnavailable
	}
	err := s.inner.InsertPredictionLog(ctx, entry)
	s.br.record(err)
	return err
}

func (s *ResilientStore) UpdateOrderPrediction(ctx context.Context, orderID string, readyTime time.Time, confidence float64) error {
	if !s.br.allow() {
		return ErrStoreUnavailable
	}
	err := s.inner.UpdateOrderPrediction(ctx, orderID, readyTime, confidence)
	s.br.record(err)
	return err
}

// Migrate and Close bypass the breaker: they run at startup/shutdown, not on
// the request path.
func (s *ResilientStore) Migrate(ctx context.Context) error { return s.inner.Migrate(ctx) }

func (s *ResilientStore) Close() error { return s.inner.Close() }
