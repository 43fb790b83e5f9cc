package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// DigestLen is the length of a hex encoded digest.
const DigestLen = 2 * sha256.Size

// Digest returns the lowercase hex SHA-256 of data. It is the link token
// stored between adjacent list nodes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidDigest reports whether s has the shape of a Digest or Fingerprint
// result: 64 lowercase hex characters.
func ValidDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Fingerprint computes the BLAKE3 digest of a whole payload, hex encoded.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
