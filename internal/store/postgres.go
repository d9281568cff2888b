package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/campuseats/preptime/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path context and logging operations.
var preparedStatements = map[string]string{
	"count_orders":        `SELECT COUNT(*) FROM orders WHERE vendor_id = $1 AND status = ANY($2)`,
	"count_orders_since":  `SELECT COUNT(*) FROM orders WHERE vendor_id = $1 AND placed_at >= $2`,
	"insert_prediction":   `INSERT INTO prediction_logs (id, order_id, predicted_ready_time, confidence, estimated_minutes, method, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_order_pred":   `UPDATE orders SET predicted_ready_time = $1, prediction_confidence = $2 WHERE id = $3`,
	"fetch_recent_orders": `SELECT id, vendor_id, status, total_base_time_minutes, max_complexity, total_items, queue_depth, recent_velocity, placed_at, ready_at FROM orders WHERE status = ANY($1) AND placed_at >= $2 ORDER BY placed_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: new pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id                      TEXT PRIMARY KEY,
	vendor_id               TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	total_base_time_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_complexity          INTEGER NOT NULL DEFAULT 1,
	total_items             INTEGER NOT NULL DEFAULT 0,
	queue_depth             INTEGER NOT NULL DEFAULT 0,
	recent_velocity         INTEGER NOT NULL DEFAULT 0,
	predicted_ready_time    TIMESTAMPTZ,
	prediction_confidence   DOUBLE PRECISION,
	placed_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	ready_at                TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS prediction_logs (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT NOT NULL,
	predicted_ready_time TIMESTAMPTZ NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	estimated_minutes    DOUBLE PRECISION NOT NULL,
	method               TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_vendor_status ON orders(vendor_id, status);
CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
CREATE INDEX IF NOT EXISTS idx_prediction_logs_order_id ON prediction_logs(order_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FetchRecentOrders(ctx context.Context, statuses []model.OrderStatus, since time.Time) ([]model.HistoricalOrder, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["fetch_recent_orders"], statusStrings(statuses), since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch recent orders")
	}
	defer rows.Close()

	var orders []model.HistoricalOrder
	for rows.Next() {
		var o model.HistoricalOrder
		if err := rows.Scan(
			&o.ID, &o.VendorID, &o.Status, &o.TotalBaseTimeMinutes, &o.MaxComplexity,
			&o.TotalItems, &o.QueueDepth, &o.RecentVelocity, &o.PlacedAt, &o.ReadyAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: fetch recent orders iterate")
}

func (s *PostgresStore) CountOrders(ctx context.Context, vendorID string, statuses []model.OrderStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_orders"], vendorID, statusStrings(statuses)).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "postgres: count orders for vendor %s", vendorID)
	}
	return n, nil
}

func (s *PostgresStore) CountOrdersSince(ctx context.Context, vendorID string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_orders_since"], vendorID, since).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "postgres: count orders since for vendor %s", vendorID)
	}
	return n, nil
}

func (s *PostgresStore) InsertPredictionLog(ctx context.Context, entry model.PredictionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, preparedStatements["insert_prediction"],
		entry.ID, entry.OrderID, entry.PredictedReadyTime, entry.Confidence,
		entry.EstimatedMinutes, string(entry.Method), entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert prediction log for order %s", entry.OrderID)
}

func (s *PostgresStore) UpdateOrderPrediction(ctx context.Context, orderID string, readyTime time.Time, confidence float64) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["update_order_pred"], readyTime, confidence, orderID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update order prediction %s", orderID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrOrderNotFound, "postgres: order %s", orderID)
	}
	return nil
}
