// Package memory provides a thread-safe in-memory order store for tests and
// prototyping.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
	"github.com/mardaloop/bakery-backend/internal/app/storage"
)

// Store implements storage.OrderStore in process memory.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]order.Order
}

var _ storage.OrderStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextID: 1,
		orders: make(map[int64]order.Order),
	}
}

func (s *Store) CreateOrder(_ context.Context, ord order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord.ID = s.nextID
	s.nextID++

	now := time.Now().UTC()
	ord.CreatedAt = now
	ord.UpdatedAt = now
	if ord.Status == "" {
		ord.Status = order.StatusReceived
	}
	ord.Items = cloneItems(ord.Items)

	s.orders[ord.ID] = ord
	return cloneOrder(ord), nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ord, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return cloneOrder(ord), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string, limit int) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]order.Order, 0)
	for _, ord := range s.orders {
		if ord.UserID == userID {
			result = append(result, cloneOrder(ord))
		}
	}
	// Newest first, matching the SQL store's ORDER BY created_at DESC.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, status order.Status) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	ord.Status = status
	ord.UpdatedAt = time.Now().UTC()
	s.orders[id] = ord
	return cloneOrder(ord), nil
}

func (s *Store) CountOrders(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.orders)), nil
}

func cloneItems(items []order.Item) []order.Item {
	if len(items) == 0 {
		return nil
	}
	return append([]order.Item(nil), items...)
}

func cloneOrder(ord order.Order) order.Order {
	ord.Items = cloneItems(ord.Items)
	return ord
}
