package orders

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
	"github.com/mardaloop/bakery-backend/internal/app/storage/memory"
	"github.com/mardaloop/bakery-backend/internal/auth/initdata"
	"github.com/mardaloop/bakery-backend/internal/ratelimit"
)

const testToken = "12345:test-bot-token"

var testNow = time.Unix(1_700_000_000, 0)

func signedInitData(t *testing.T, userJSON string) string {
	t.Helper()

	fields := map[string]string{
		"user":      userJSON,
		"auth_date": fmt.Sprintf("%d", testNow.Unix()),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	derive := hmac.New(sha256.New, []byte("WebAppData"))
	derive.Write([]byte(testToken))
	mac := hmac.New(sha256.New, derive.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	return strings.Join(lines, "&") + "&hash=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestService(t *testing.T, limit int) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	gate := ratelimit.NewGate(ratelimit.NewMemoryStore(time.Minute, func() time.Time { return testNow }), limit, nil)
	verifier := initdata.New(testToken, initdata.WithClock(func() time.Time { return testNow }))
	return New(store, gate, verifier, nil), store
}

func validSubmission(t *testing.T) order.Submission {
	return order.Submission{
		Items: []order.Item{
			{ID: 1, Name: "croissant", Quantity: 2, Price: 3.50},
			{ID: 2, Name: "latte", Quantity: 1, Price: 4.00},
		},
		Total:    11.00,
		InitData: signedInitData(t, `{"id":42,"first_name":"A","username":"alice"}`),
		Notes:    "no nuts please",
	}
}

func TestSubmitAcceptsAndPersists(t *testing.T) {
	svc, store := newTestService(t, 30)

	created, user, err := svc.Submit(context.Background(), "9.9.9.9", validSubmission(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("expected identity 42, got %d", user.ID)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned order id")
	}
	if created.Status != order.StatusReceived {
		t.Fatalf("expected initial status received, got %s", created.Status)
	}
	if created.UserID != "42" || created.Username != "alice" {
		t.Fatalf("identity not carried onto the record: %+v", created)
	}

	stored, err := store.GetOrder(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get stored order: %v", err)
	}
	if stored.Total != 11.00 || len(stored.Items) != 2 {
		t.Fatalf("unexpected stored order %+v", stored)
	}
}

func TestSubmitRejectsBadSignatureBeforeValidation(t *testing.T) {
	svc, store := newTestService(t, 30)

	// Both the signature and the items are invalid; the signature failure
	// must win because verification runs first.
	sub := validSubmission(t)
	sub.InitData = strings.Replace(sub.InitData, "hash=", "hash=0000", 1)
	sub.Items = nil

	_, _, err := svc.Submit(context.Background(), "9.9.9.9", sub)
	if !errors.Is(err, initdata.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if n, _ := store.CountOrders(context.Background()); n != 0 {
		t.Fatalf("rejected submission must not be persisted")
	}
}

func TestSubmitRateLimitPrecedesAuthentication(t *testing.T) {
	svc, _ := newTestService(t, 1)

	sub := validSubmission(t)
	if _, _, err := svc.Submit(context.Background(), "1.1.1.1", sub); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Second request carries garbage auth but must be rejected by the gate,
	// which runs before the verifier.
	bad := sub
	bad.InitData = "garbage"
	_, _, err := svc.Submit(context.Background(), "1.1.1.1", bad)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// A different client identity is unaffected.
	if _, _, err := svc.Submit(context.Background(), "2.2.2.2", sub); err != nil {
		t.Fatalf("other client: %v", err)
	}
}

func TestSubmitRejectsValidationFailure(t *testing.T) {
	svc, store := newTestService(t, 30)

	sub := validSubmission(t)
	sub.Total = 10.00

	_, _, err := svc.Submit(context.Background(), "9.9.9.9", sub)
	var mismatch *TotalMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TotalMismatchError, got %v", err)
	}
	if n, _ := store.CountOrders(context.Background()); n != 0 {
		t.Fatalf("rejected submission must not be persisted")
	}
}

func TestHistoryEnforcesIdentity(t *testing.T) {
	svc, _ := newTestService(t, 30)

	if _, _, err := svc.Submit(context.Background(), "9.9.9.9", validSubmission(t)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	initData := signedInitData(t, `{"id":42,"first_name":"A"}`)
	history, err := svc.History(context.Background(), initData, "42", 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one order in history, got %d", len(history))
	}

	if _, err := svc.History(context.Background(), initData, "43", 20); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for mismatched user id, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _ := newTestService(t, 30)

	created, _, err := svc.Submit(context.Background(), "9.9.9.9", validSubmission(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	owner := signedInitData(t, `{"id":42,"first_name":"A"}`)
	if _, err := svc.Get(context.Background(), owner, created.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	stranger := signedInitData(t, `{"id":7,"first_name":"B"}`)
	if _, err := svc.Get(context.Background(), stranger, created.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for foreign order, got %v", err)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t, 30)

	created, _, err := svc.Submit(context.Background(), "9.9.9.9", validSubmission(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), created.ID, order.StatusPreparing)
	if err != nil {
		t.Fatalf("received -> preparing: %v", err)
	}
	if updated.Status != order.StatusPreparing {
		t.Fatalf("expected preparing, got %s", updated.Status)
	}

	if _, err := svc.SetStatus(context.Background(), created.ID, order.StatusCompleted); err == nil {
		t.Fatalf("preparing -> completed must be rejected")
	}

	if _, err := svc.SetStatus(context.Background(), created.ID, order.Status("burnt")); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}
