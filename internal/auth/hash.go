package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// TokenFingerprint returns a short hex digest of a bearer token.
// Raw tokens must never be used as cache keys or appear in logs; the
// fingerprint is safe for both and cheap enough for the request path.
func TokenFingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}
