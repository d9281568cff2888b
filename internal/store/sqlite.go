package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/campuseats/preptime/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// single-node deployments where running postgres is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id                      TEXT PRIMARY KEY,
	vendor_id               TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	total_base_time_minutes REAL NOT NULL DEFAULT 0,
	max_complexity          INTEGER NOT NULL DEFAULT 1,
	total_items             INTEGER NOT NULL DEFAULT 0,
	queue_depth             INTEGER NOT NULL DEFAULT 0,
	recent_velocity         INTEGER NOT NULL DEFAULT 0,
	predicted_ready_time    DATETIME,
	prediction_confidence   REAL,
	placed_at               DATETIME NOT NULL DEFAULT (datetime('now')),
	ready_at                DATETIME
);

CREATE TABLE IF NOT EXISTS prediction_logs (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT NOT NULL,
	predicted_ready_time DATETIME NOT NULL,
	confidence           REAL NOT NULL,
	estimated_minutes    REAL NOT NULL,
	method               TEXT NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_orders_vendor_status ON orders(vendor_id, status);
CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
CREATE INDEX IF NOT EXISTS idx_prediction_logs_order_id ON prediction_logs(order_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) FetchRecentOrders(ctx context.Context, statuses []model.OrderStatus, since time.Time) ([]model.HistoricalOrder, error) {
	query := `SELECT id, vendor_id, status, total_base_time_minutes, max_complexity, total_items,
		queue_depth, recent_velocity, placed_at, ready_at
		FROM orders WHERE status IN (` + placeholders(len(statuses)) + `) AND placed_at >= ? ORDER BY placed_at`

	args := make([]any, 0, len(statuses)+1)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, since)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch recent orders")
	}
	defer rows.Close()

	var orders []model.HistoricalOrder
	for rows.Next() {
		var o model.HistoricalOrder
		var readyAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.VendorID, &o.Status, &o.TotalBaseTimeMinutes, &o.MaxComplexity,
			&o.TotalItems, &o.QueueDepth, &o.RecentVelocity, &o.PlacedAt, &readyAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		if readyAt.Valid {
			t := readyAt.Time
			o.ReadyAt = &t
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: fetch recent orders iterate")
}

func (s *SQLiteStore) CountOrders(ctx context.Context, vendorID string, statuses []model.OrderStatus) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE vendor_id = ? AND status IN (` + placeholders(len(statuses)) + `)`
	args := []any{vendorID}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count orders for vendor %s", vendorID)
	}
	return n, nil
}

func (s *SQLiteStore) CountOrdersSince(ctx context.Context, vendorID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE vendor_id = ? AND placed_at >= ?`,
		vendorID, since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count orders since for vendor %s", vendorID)
	}
	return n, nil
}

func (s *SQLiteStore) InsertPredictionLog(ctx context.Context, entry model.PredictionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_logs (id, order_id, predicted_ready_time, confidence, estimated_minutes, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, entry.PredictedReadyTime, entry.Confidence,
		entry.EstimatedMinutes, string(entry.Method), entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert prediction log for order %s", entry.OrderID)
}

func (s *SQLiteStore) UpdateOrderPrediction(ctx context.Context, orderID string, readyTime time.Time, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET predicted_ready_time = ?, prediction_confidence = ? WHERE id = ?`,
		readyTime, confidence, orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update order prediction %s", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrOrderNotFound, "sqlite: order %s", orderID)
	}
	return nil
}
