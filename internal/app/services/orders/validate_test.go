package orders

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
)

func item(qty int, price float64) order.Item {
	return order.Item{ID: 1, Name: "croissant", Quantity: qty, Price: price}
}

func TestValidateAcceptsMatchingTotal(t *testing.T) {
	sub := order.Submission{
		Items: []order.Item{item(2, 3.50), item(1, 4.00)},
		Total: 11.00,
	}
	v, err := Validate(sub)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.ComputedTotal != 11.00 {
		t.Fatalf("expected computed total 11.00, got %v", v.ComputedTotal)
	}
	if v.Total != 11.00 {
		t.Fatalf("expected declared total preserved, got %v", v.Total)
	}
}

func TestValidateTotalMismatch(t *testing.T) {
	sub := order.Submission{
		Items: []order.Item{item(2, 3.50), item(1, 4.00)},
		Total: 10.00,
	}
	_, err := Validate(sub)

	var mismatch *TotalMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TotalMismatchError, got %v", err)
	}
	if mismatch.Expected != 11.00 || mismatch.Received != 10.00 {
		t.Fatalf("expected diagnostics 11.00/10.00, got %+v", mismatch)
	}
}

func TestValidateTotalTolerance(t *testing.T) {
	// One cent of rounding slack is accepted.
	sub := order.Submission{
		Items: []order.Item{item(3, 3.33)},
		Total: 10.00,
	}
	if _, err := Validate(sub); err != nil {
		t.Fatalf("expected 9.99 vs 10.00 within tolerance, got %v", err)
	}

	sub.Total = 10.02
	if _, err := Validate(sub); err == nil {
		t.Fatalf("expected mismatch beyond tolerance")
	}
}

func TestValidatePriceRounding(t *testing.T) {
	sub := order.Submission{
		Items: []order.Item{item(1, 3.999)},
		Total: 4.00,
	}
	v, err := Validate(sub)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Items[0].Price != 4.00 {
		t.Fatalf("expected price rounded to 4.00, got %v", v.Items[0].Price)
	}
}

func TestValidateBounds(t *testing.T) {
	manyItems := make([]order.Item, 51)
	for i := range manyItems {
		manyItems[i] = item(1, 1)
	}

	cases := []struct {
		name string
		sub  order.Submission
		want error
	}{
		{"empty order", order.Submission{}, ErrEmptyOrder},
		{"too many items", order.Submission{Items: manyItems, Total: 51}, ErrTooManyItems},
		{"zero quantity", order.Submission{Items: []order.Item{item(0, 1)}, Total: 0}, ErrInvalidQuantity},
		{"quantity over limit", order.Submission{Items: []order.Item{item(101, 1)}, Total: 101}, ErrInvalidQuantity},
		{"negative price", order.Submission{Items: []order.Item{item(1, -0.01)}, Total: 0}, ErrInvalidPrice},
		{"price over limit", order.Submission{Items: []order.Item{item(1, 1000.01)}, Total: 1000.01}, ErrInvalidPrice},
		{"nan price", order.Submission{Items: []order.Item{item(1, math.NaN())}, Total: 0}, ErrInvalidPrice},
		{"negative total", order.Submission{Items: []order.Item{item(1, 1)}, Total: -1}, ErrInvalidTotal},
		{"total over limit", order.Submission{Items: []order.Item{item(1, 1)}, Total: 10000.01}, ErrInvalidTotal},
		{"note too long", order.Submission{Items: []order.Item{item(1, 1)}, Total: 1, Notes: strings.Repeat("x", 501)}, ErrNoteTooLong},
	}

	for _, tc := range cases {
		if _, err := Validate(tc.sub); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	fifty := make([]order.Item, 50)
	for i := range fifty {
		fifty[i] = item(100, 1)
	}
	sub := order.Submission{Items: fifty, Total: 5000}
	if _, err := Validate(sub); err != nil {
		t.Fatalf("50 items x qty 100 must validate: %v", err)
	}

	free := order.Submission{Items: []order.Item{item(1, 0)}, Total: 0}
	if _, err := Validate(free); err != nil {
		t.Fatalf("zero-price item must validate: %v", err)
	}
}

func TestValidateNoteTrimming(t *testing.T) {
	// A note that only exceeds the limit before trimming is fine.
	padded := "  " + strings.Repeat("x", 499) + "  "
	sub := order.Submission{Items: []order.Item{item(1, 1)}, Total: 1, Notes: padded}
	v, err := Validate(sub)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Notes != strings.Repeat("x", 499) {
		t.Fatalf("expected trimmed note, got %q", v.Notes)
	}

	blank := order.Submission{Items: []order.Item{item(1, 1)}, Total: 1, Notes: "   "}
	v, err = Validate(blank)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Notes != "" {
		t.Fatalf("whitespace-only note must be treated as absent, got %q", v.Notes)
	}
}

func TestValidateNoteLengthCountsCharacters(t *testing.T) {
	// 400 Cyrillic characters are 800 bytes; the limit is on characters.
	sub := order.Submission{
		Items: []order.Item{item(1, 1)},
		Total: 1,
		Notes: strings.Repeat("ж", 400),
	}
	if _, err := Validate(sub); err != nil {
		t.Fatalf("400-character multibyte note must validate: %v", err)
	}

	sub.Notes = strings.Repeat("ж", 501)
	if _, err := Validate(sub); !errors.Is(err, ErrNoteTooLong) {
		t.Fatalf("expected ErrNoteTooLong for 501 characters, got %v", err)
	}
}

func TestValidateIsPure(t *testing.T) {
	sub := order.Submission{
		Items: []order.Item{item(2, 3.999)},
		Total: 8.00,
		Notes: " note ",
	}

	first, err := Validate(sub)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := Validate(sub)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}

	if first.ComputedTotal != second.ComputedTotal || first.Notes != second.Notes {
		t.Fatalf("validate is not idempotent: %+v vs %+v", first, second)
	}
	// The input submission must not have been mutated.
	if sub.Items[0].Price != 3.999 || sub.Notes != " note " {
		t.Fatalf("validate mutated its input: %+v", sub)
	}
}
