// Package phone normalizes dialed numbers and derives the keyed digest used
// as their storage key. Raw numbers never reach the identity store; the
// digest is the privacy boundary.
package phone

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize strips formatting (spaces, dashes, dots, parentheses) and a
// leading + from a dialed number, leaving digits only.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hasher derives deterministic digests of normalized phone numbers using an
// HMAC keyed with a process-wide secret.
type Hasher struct {
	secret []byte
}

// NewHasher builds a Hasher from the configured secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the hex digest of the normalized number.
func (h *Hasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(Normalize(raw)))
	return hex.EncodeToString(mac.Sum(nil))
}
