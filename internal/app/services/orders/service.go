// Package orders implements order admission and record keeping. A submission
// passes the admission pipeline — rate gate, signed-payload verification,
// order validation, strictly in that order — before it is handed to the
// store.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/mardaloop/bakery-backend/internal/app/domain/identity"
	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
	"github.com/mardaloop/bakery-backend/internal/app/metrics"
	"github.com/mardaloop/bakery-backend/internal/app/storage"
	"github.com/mardaloop/bakery-backend/internal/auth/initdata"
	"github.com/mardaloop/bakery-backend/internal/ratelimit"
	"github.com/mardaloop/bakery-backend/pkg/logger"
)

// ErrAccessDenied is returned when an authenticated user requests a record
// they do not own.
var ErrAccessDenied = errors.New("access denied")

// Service orchestrates the admission pipeline and owns order record
// operations. It is stateless apart from the gate's counter store and safe
// for concurrent use.
type Service struct {
	store    storage.OrderStore
	gate     *ratelimit.Gate
	verifier *initdata.Verifier
	log      *logger.Logger
}

// New constructs the orders service.
func New(store storage.OrderStore, gate *ratelimit.Gate, verifier *initdata.Verifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, gate: gate, verifier: verifier, log: log}
}

// Submit runs the admission pipeline for a submission from the given client
// identity (typically the caller's network address) and persists the order
// on success. Each stage's failure is terminal; later stages never run.
func (s *Service) Submit(ctx context.Context, clientID string, sub order.Submission) (order.Order, identity.User, error) {
	if err := s.gate.Allow(ctx, clientID); err != nil {
		metrics.RecordAdmission("rate_limited")
		s.log.WithContext(ctx).WithField("client", clientID).Warn("order rejected: rate limited")
		return order.Order{}, identity.User{}, err
	}

	user, err := s.verifier.Verify(sub.InitData)
	if err != nil {
		metrics.RecordAdmission("unauthenticated")
		s.log.WithContext(ctx).WithField("client", clientID).WithError(err).Warn("order rejected: authentication failed")
		return order.Order{}, identity.User{}, err
	}

	validated, err := Validate(sub)
	if err != nil {
		metrics.RecordAdmission("invalid")
		s.log.WithContext(ctx).WithField("user_id", user.ID).WithError(err).Warn("order rejected: validation failed")
		return order.Order{}, identity.User{}, err
	}

	created, err := s.store.CreateOrder(ctx, order.Order{
		UserID:        user.Key(),
		Username:      user.Username,
		Items:         validated.Items,
		Total:         validated.Total,
		Status:        order.StatusReceived,
		PaymentMethod: order.PaymentCash,
		Notes:         validated.Notes,
	})
	if err != nil {
		return order.Order{}, identity.User{}, fmt.Errorf("persist order: %w", err)
	}

	metrics.RecordAdmission("accepted")
	metrics.RecordOrderCreated(created.Total)
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":    created.ID,
		"user_id":     user.ID,
		"total":       created.Total,
		"items_count": len(created.Items),
	}).Info("order created")

	return created, user, nil
}

// History returns up to limit recent orders for the authenticated user. The
// requested userID must match the verified identity.
func (s *Service) History(ctx context.Context, rawInitData, userID string, limit int) ([]order.Order, error) {
	user, err := s.verifier.Verify(rawInitData)
	if err != nil {
		return nil, err
	}
	if user.Key() != userID {
		return nil, ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListOrdersByUser(ctx, userID, limit)
}

// Get returns a single order. Users can only read their own orders.
func (s *Service) Get(ctx context.Context, rawInitData string, orderID int64) (order.Order, error) {
	user, err := s.verifier.Verify(rawInitData)
	if err != nil {
		return order.Order{}, err
	}
	ord, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if ord.UserID != user.Key() {
		return order.Order{}, ErrAccessDenied
	}
	return ord, nil
}

// SetStatus advances an order through its lifecycle. Transitions out of
// terminal states are rejected.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status order.Status) (order.Order, error) {
	if !status.Valid() {
		return order.Order{}, fmt.Errorf("unsupported status %q", status)
	}
	ord, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !ord.Status.CanTransition(status) {
		return order.Order{}, fmt.Errorf("cannot transition order %d from %s to %s", orderID, ord.Status, status)
	}
	updated, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return order.Order{}, err
	}
	s.log.WithField("order_id", orderID).
		WithField("status", string(status)).
		Info("order status changed")
	return updated, nil
}

// Count reports the number of stored orders, used by the health probe.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountOrders(ctx)
}
