// Package fingerprint derives irreversible caller identifiers from phone
// numbers. The raw number must never be persisted or logged; every stored
// reference uses the salted hash produced here.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher computes salted phone fingerprints.
type Hasher struct {
	salt string
}

// NewHasher creates a Hasher with the given salt. The salt is part of the
// persisted-data contract: changing it orphans every stored SpamProfile.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Phone returns the hex-encoded fingerprint for a raw phone number:
// sha256(normalize(digits_only(phone)) + "|" + salt).
func (h *Hasher) Phone(raw string) string {
	sum := sha256.Sum256([]byte(normalize(raw) + "|" + h.salt))
	return hex.EncodeToString(sum[:])
}

// normalize strips everything but digits and removes common
// international prefixes so the same number always hashes identically.
func normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// 0086 / 86 country prefixes fold onto the bare national number.
	if strings.HasPrefix(digits, "0086") && len(digits) > 4 {
		digits = digits[4:]
	} else if strings.HasPrefix(digits, "86") && len(digits) == 13 {
		digits = digits[2:]
	}
	return digits
}
