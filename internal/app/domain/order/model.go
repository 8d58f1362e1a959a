package order

import "time"

// Status describes the lifecycle of an order record.
type Status string

const (
	StatusReceived  Status = "received"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod identifies how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentStars PaymentMethod = "telegram_stars"
)

// Item is a single menu line within an order.
type Item struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"qty"`
	Price    float64 `json:"price"`
}

// Submission is the client-supplied order payload before admission. InitData
// carries the signed authentication payload and is never persisted.
type Submission struct {
	Items    []Item  `json:"items"`
	Total    float64 `json:"total"`
	InitData string  `json:"init_data"`
	Notes    string  `json:"notes,omitempty"`
}

// Validated is a submission that passed the admission pipeline. It is
// immutable after construction; ComputedTotal is the server-side cross-check
// of the declared total.
type Validated struct {
	Items         []Item
	Total         float64
	ComputedTotal float64
	Notes         string
}

// Order is the persisted record the storage layer owns. Status transitions
// happen through the store, never on the validated value.
type Order struct {
	ID            int64         `json:"id"`
	UserID        string        `json:"user_id"`
	Username      string        `json:"username,omitempty"`
	Items         []Item        `json:"items"`
	Total         float64       `json:"total"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CanTransition reports whether a status change is allowed. Terminal states
// accept no further transitions.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusReceived:
		return to == StatusPreparing || to == StatusReady || to == StatusCancelled
	case StatusPreparing:
		return to == StatusReady || to == StatusCancelled
	case StatusReady:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
