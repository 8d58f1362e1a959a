// Package initdata verifies signed web-app payloads issued by the chat
// platform's client runtime. A payload is a query-string-like sequence of
// key=value pairs carrying a keyed-hash signature under the reserved "hash"
// key; verification recomputes the signature over a canonical rendering of
// the remaining fields.
package initdata

import (
	"errors"
	"sort"
	"strings"
)

// ErrMalformedPayload indicates the raw payload could not be parsed: it is
// empty, a pair lacks '=', or the signature field is missing.
var ErrMalformedPayload = errors.New("malformed signed payload")

// hashKey is the reserved field carrying the signature.
const hashKey = "hash"

// parsePayload splits the raw payload into its field mapping. Values may
// contain '=', so each pair is split on the first one only. Duplicate keys
// are allowed by the wire grammar; the last occurrence wins.
func parsePayload(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, ErrMalformedPayload
	}
	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, ErrMalformedPayload
		}
		fields[key] = value
	}
	return fields, nil
}

// Canonicalize parses raw, extracts the signature, and renders the remaining
// fields in the deterministic form used as the signing message: pairs sorted
// byte-wise by key, each as key=value, newline-joined with no trailing
// newline. The returned map holds the parsed non-signature fields.
func Canonicalize(raw string) (signature, canonical string, fields map[string]string, err error) {
	fields, err = parsePayload(raw)
	if err != nil {
		return "", "", nil, err
	}

	signature, ok := fields[hashKey]
	if !ok {
		return "", "", nil, ErrMalformedPayload
	}
	delete(fields, hashKey)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return signature, b.String(), fields, nil
}
