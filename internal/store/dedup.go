package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BodyHash returns the SHA-256 hex digest of the body text. Stored on
// every row for duplicate-content analysis and used as the identity key
// substitute when Message-ID is absent.
func BodyHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// IdentityKey returns the value that deduplicates a message: the
// Message-ID header when present, otherwise the body hash.
func IdentityKey(messageID, bodyHash string) string {
	if id := strings.TrimSpace(messageID); id != "" {
		return id
	}
	return bodyHash
}
