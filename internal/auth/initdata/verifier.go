package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mardaloop/bakery-backend/internal/app/domain/identity"
)

var (
	// ErrInvalidSignature indicates the recomputed signature does not match
	// the one supplied with the payload.
	ErrInvalidSignature = errors.New("invalid payload signature")
	// ErrExpiredSignature indicates the payload's auth_date is older than
	// the accepted window.
	ErrExpiredSignature = errors.New("expired payload signature")
	// ErrMalformedUser indicates the user field is missing or unparsable.
	ErrMalformedUser = errors.New("malformed user field")
)

// keyDomain is the fixed framework-level salt the platform uses to derive
// the signing key from the bot token. It is part of the protocol, not
// configuration.
const keyDomain = "WebAppData"

// MaxAge is the accepted age of a payload's auth_date.
const MaxAge = 24 * time.Hour

// Verifier checks signed payloads against a pre-shared bot token. The zero
// value is not usable; construct with New. Verification is a pure function
// over (payload, token, now), so a single Verifier is safe for concurrent
// use.
type Verifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithMaxAge overrides the accepted payload age.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) { v.maxAge = d }
}

// New creates a Verifier for the given bot token.
func New(botToken string, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(botToken),
		maxAge: MaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates raw and returns the identity that signed it. Field
// order in raw does not affect the outcome. Failures are always one of
// ErrMalformedPayload, ErrInvalidSignature, ErrExpiredSignature or
// ErrMalformedUser.
func (v *Verifier) Verify(raw string) (identity.User, error) {
	signature, canonical, fields, err := Canonicalize(raw)
	if err != nil {
		return identity.User{}, err
	}

	expected := computeSignature(v.secret, canonical)
	supplied, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, supplied) {
		return identity.User{}, ErrInvalidSignature
	}

	// auth_date is itself one of the signed fields, so a forged timestamp
	// cannot pass the comparison above.
	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil {
		return identity.User{}, ErrExpiredSignature
	}
	if v.now().Unix()-authDate > int64(v.maxAge/time.Second) {
		return identity.User{}, ErrExpiredSignature
	}

	return parseUser(fields["user"])
}

// computeSignature derives the signing key from the bot token under the
// fixed key domain, then MACs the canonical string with it.
func computeSignature(secret []byte, canonical string) []byte {
	derive := hmac.New(sha256.New, []byte(keyDomain))
	derive.Write(secret)
	key := derive.Sum(nil)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	return mac.Sum(nil)
}

// parseUser extracts the identity from the serialized user record. A numeric
// id is required; the remaining fields are optional display metadata.
func parseUser(raw string) (identity.User, error) {
	if raw == "" || !gjson.Valid(raw) {
		return identity.User{}, ErrMalformedUser
	}
	id := gjson.Get(raw, "id")
	if !id.Exists() || id.Type != gjson.Number {
		return identity.User{}, ErrMalformedUser
	}
	return identity.User{
		ID:           id.Int(),
		FirstName:    gjson.Get(raw, "first_name").String(),
		LastName:     gjson.Get(raw, "last_name").String(),
		Username:     gjson.Get(raw, "username").String(),
		LanguageCode: gjson.Get(raw, "language_code").String(),
	}, nil
}
