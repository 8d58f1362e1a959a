// Package app wires the storefront services to their collaborators.
package app

import (
	"github.com/mardaloop/bakery-backend/internal/app/services/orders"
	"github.com/mardaloop/bakery-backend/internal/app/storage"
	"github.com/mardaloop/bakery-backend/internal/app/storage/memory"
	"github.com/mardaloop/bakery-backend/internal/auth/initdata"
	"github.com/mardaloop/bakery-backend/internal/ratelimit"
	"github.com/mardaloop/bakery-backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Orders storage.OrderStore
}

// Application ties the domain services together.
type Application struct {
	Orders *orders.Service

	log *logger.Logger
}

// New builds a fully initialised application. The verifier and gate are
// required; stores default to memory.
func New(stores Stores, gate *ratelimit.Gate, verifier *initdata.Verifier, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Orders == nil {
		stores.Orders = memory.New()
	}

	return &Application{
		Orders: orders.New(stores.Orders, gate, verifier, log.WithField("service", "orders")),
		log:    log,
	}
}
