package orders

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
)

// Validation bounds on a submission.
const (
	MaxItems     = 50
	MaxQuantity  = 100
	MaxUnitPrice = 1000
	MaxTotal     = 10000
	MaxNoteLen   = 500

	// totalTolerance absorbs floating-point rounding between the declared
	// and recomputed totals.
	totalTolerance = 0.01
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrTooManyItems    = errors.New("too many items in order")
	ErrInvalidQuantity = errors.New("invalid item quantity")
	ErrInvalidPrice    = errors.New("invalid item price")
	ErrInvalidTotal    = errors.New("invalid order total")
	ErrNoteTooLong     = errors.New("notes too long")
)

// TotalMismatchError reports a declared total that disagrees with the total
// recomputed from the items.
type TotalMismatchError struct {
	Expected float64
	Received float64
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("total mismatch: expected %.2f, received %.2f", e.Expected, e.Received)
}

// Validate checks a submission structurally and economically and returns the
// immutable validated order on success. Item checks short-circuit on the
// first failing item. Validate is pure: it never mutates sub and calling it
// twice yields the same result.
func Validate(sub order.Submission) (order.Validated, error) {
	if len(sub.Items) == 0 {
		return order.Validated{}, ErrEmptyOrder
	}
	if len(sub.Items) > MaxItems {
		return order.Validated{}, fmt.Errorf("%w: %d items, limit %d", ErrTooManyItems, len(sub.Items), MaxItems)
	}

	items := make([]order.Item, len(sub.Items))
	for i, it := range sub.Items {
		if it.Quantity < 1 || it.Quantity > MaxQuantity {
			return order.Validated{}, fmt.Errorf("item %d: %w: %d", i, ErrInvalidQuantity, it.Quantity)
		}
		if it.Price < 0 || it.Price > MaxUnitPrice || math.IsNaN(it.Price) {
			return order.Validated{}, fmt.Errorf("item %d: %w: %v", i, ErrInvalidPrice, it.Price)
		}
		it.Price = roundCents(it.Price)
		items[i] = it
	}

	if sub.Total < 0 || sub.Total > MaxTotal || math.IsNaN(sub.Total) {
		return order.Validated{}, fmt.Errorf("%w: %v", ErrInvalidTotal, sub.Total)
	}

	notes := strings.TrimSpace(sub.Notes)
	// The bound is in characters, not bytes; multibyte notes count per rune.
	if n := utf8.RuneCountInString(notes); n > MaxNoteLen {
		return order.Validated{}, fmt.Errorf("%w: %d chars, limit %d", ErrNoteTooLong, n, MaxNoteLen)
	}

	var computed float64
	for _, it := range items {
		computed += float64(it.Quantity) * it.Price
	}
	computed = roundCents(computed)
	if math.Abs(computed-sub.Total) > totalTolerance {
		return order.Validated{}, &TotalMismatchError{Expected: computed, Received: sub.Total}
	}

	return order.Validated{
		Items:         items,
		Total:         sub.Total,
		ComputedTotal: computed,
		Notes:         notes,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
