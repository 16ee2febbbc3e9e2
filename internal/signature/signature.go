// Package signature implements the payment gateway's webhook signing scheme:
// an MD5 digest over the form fields, name-sorted, percent-encoded the way
// the gateway encodes them (space as '+', uppercase hex escapes).
package signature

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// FieldName is the form field carrying the digest; it is excluded from the
// signed string.
const FieldName = "signature"

type Verifier struct {
	passphrase string
}

// NewVerifier returns a Verifier. passphrase may be empty when the merchant
// account has none configured.
func NewVerifier(passphrase string) *Verifier {
	return &Verifier{passphrase: passphrase}
}

// Sign computes the gateway signature for the given form fields. Empty-valued
// fields and the signature field itself do not participate.
func (v *Verifier) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, val := range params {
		if k == FieldName || val == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	if v.passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(url.QueryEscape(v.passphrase))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the signature field in params matches the digest of
// the remaining fields. It never returns an error; anything malformed is
// simply not a valid signature.
func (v *Verifier) Verify(params map[string]string) bool {
	got, ok := params[FieldName]
	if !ok || got == "" {
		return false
	}
	return strings.EqualFold(got, v.Sign(params))
}
