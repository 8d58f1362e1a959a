package storage

import (
	"context"
	"errors"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// OrderStore persists order records. CreateOrder assigns the identifier and
// timestamps and sets the initial status.
type OrderStore interface {
	CreateOrder(ctx context.Context, ord order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]order.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status) (order.Order, error)
	CountOrders(ctx context.Context) (int64, error)
}
