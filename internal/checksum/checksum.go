// Package checksum computes the content digests used as modification
// markers and journal fingerprints.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Text is Sum over a string. The empty string has no digest.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return Sum([]byte(s))
}
