package security

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"

	"github.com/google/uuid"
)

// HashLength is the length of every value returned by GenerateUniqueHash.
const HashLength = 43

var hashAlphabet = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// GenerateUniqueHash returns the unpadded base64url SHA-256 digest of a
// random UUID.
func GenerateUniqueHash() string {
	id := uuid.New()
	sum := sha256.Sum256([]byte(id.String()))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsWellFormedID reports whether id is acceptable as an inbound request id:
// non-empty, at most 128 bytes, and limited to URL-safe characters.
func IsWellFormedID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return hashAlphabet.MatchString(id)
}
