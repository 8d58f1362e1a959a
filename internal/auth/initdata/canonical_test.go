package initdata

import (
	"errors"
	"testing"
)

func TestCanonicalizeSortsFields(t *testing.T) {
	sig, canonical, _, err := Canonicalize("b=2&hash=abc&a=1&c=3")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if sig != "abc" {
		t.Fatalf("expected signature abc, got %q", sig)
	}
	if canonical != "a=1\nb=2\nc=3" {
		t.Fatalf("unexpected canonical string %q", canonical)
	}
}

func TestCanonicalizeOrderIndependent(t *testing.T) {
	inputs := []string{
		"user=u&auth_date=1&hash=h",
		"auth_date=1&user=u&hash=h",
		"hash=h&user=u&auth_date=1",
	}
	var first string
	for i, raw := range inputs {
		_, canonical, _, err := Canonicalize(raw)
		if err != nil {
			t.Fatalf("canonicalize %q: %v", raw, err)
		}
		if i == 0 {
			first = canonical
			continue
		}
		if canonical != first {
			t.Fatalf("reordered payload produced %q, want %q", canonical, first)
		}
	}
}

func TestCanonicalizeValueContainingEquals(t *testing.T) {
	_, canonical, fields, err := Canonicalize("user=a=b=c&hash=h")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if fields["user"] != "a=b=c" {
		t.Fatalf("expected value split on first '=' only, got %q", fields["user"])
	}
	if canonical != "user=a=b=c" {
		t.Fatalf("unexpected canonical string %q", canonical)
	}
}

// The wire grammar permits duplicate keys; the contract is that the last
// occurrence wins.
func TestCanonicalizeDuplicateKeysLastWins(t *testing.T) {
	_, canonical, fields, err := Canonicalize("a=first&hash=h&a=second")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if fields["a"] != "second" {
		t.Fatalf("expected last occurrence to win, got %q", fields["a"])
	}
	if canonical != "a=second" {
		t.Fatalf("unexpected canonical string %q", canonical)
	}
}

func TestCanonicalizeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":               "",
		"missing hash":        "a=1&b=2",
		"pair without equals": "a=1&junk&hash=h",
		"empty key":           "=v&hash=h",
	}
	for name, raw := range cases {
		if _, _, _, err := Canonicalize(raw); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}
