// Package postgres implements the order store backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
	"github.com/mardaloop/bakery-backend/internal/app/storage"
)

// Store implements storage.OrderStore backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.OrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the orders table when missing, so a fresh database
// works without a separate migration step.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT,
			items JSONB NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'received',
			payment_method TEXT NOT NULL DEFAULT 'cash',
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	now := time.Now().UTC()
	ord.CreatedAt = now
	ord.UpdatedAt = now
	if ord.Status == "" {
		ord.Status = order.StatusReceived
	}

	itemsJSON, err := json.Marshal(ord.Items)
	if err != nil {
		return order.Order{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, username, items, total, status, payment_method, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, ord.UserID, ord.Username, itemsJSON, ord.Total, string(ord.Status), string(ord.PaymentMethod), ord.Notes, ord.CreatedAt, ord.UpdatedAt).Scan(&ord.ID)
	if err != nil {
		return order.Order{}, err
	}
	return ord, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, items, total, status, payment_method, notes, created_at, updated_at
		FROM orders WHERE id = $1
	`, id)

	ord, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return ord, err
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, username, items, total, status, payment_method, notes, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]order.Order, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ord)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) (order.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return order.Order{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (order.Order, error) {
	var (
		ord       order.Order
		itemsJSON []byte
		username  sql.NullString
		notes     sql.NullString
		status    string
		payment   string
	)
	err := row.Scan(&ord.ID, &ord.UserID, &username, &itemsJSON, &ord.Total, &status, &payment, &notes, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &ord.Items); err != nil {
		return order.Order{}, fmt.Errorf("decode items for order %d: %w", ord.ID, err)
	}
	ord.Username = username.String
	ord.Notes = notes.String
	ord.Status = order.Status(status)
	ord.PaymentMethod = order.PaymentMethod(payment)
	return ord, nil
}
