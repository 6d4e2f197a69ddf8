// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrChecksumMismatch indicates the computed SHA-256 hash does not match the
// hash the feed published for the artifact.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError provides details about a checksum verification failure.
// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
type ChecksumError struct {
	Expected string
	Got      string
}

// Error shows both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed\nExpected: %s\nGot:      %s", e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// verifyChecksum compares the SHA-256 of data against the expected
// hex-encoded hash. An empty expected hash means the feed published none and
// verification is skipped; a malformed one is treated as a mismatch, since a
// feed that advertises a hash it cannot spell is not to be trusted.
func verifyChecksum(data []byte, expectedHex string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	if expected == "" {
		return nil
	}

	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])

	if !isValidHexHash(expected) || got != expected {
		return &ChecksumError{Expected: expected, Got: got}
	}
	return nil
}

// isValidHexHash reports whether s is a 64-character lowercase hex string,
// the canonical encoding of a SHA-256 digest.
func isValidHexHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
