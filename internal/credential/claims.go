// Package credential mints and models the signed proof-of-age credential. The
// credential is a compact JWT carrying only an age threshold and a device
// fingerprint; no personal data is ever embedded or stored.
package credential

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
)

// AgeClaims is the exact claim set of a minted credential. The device value is
// the hex digest of the device's durable public key, never the key itself.
type AgeClaims struct {
	AgeOver int    `json:"ageOver"`
	Device  string `json:"device"`
	jwt.RegisteredClaims
}

// Fingerprint derives the device fingerprint from a device public key:
// hex(SHA-256(public key bytes)).
func Fingerprint(devicePublicKey []byte) string {
	digest := sha256.Sum256(devicePublicKey)
	return hex.EncodeToString(digest[:])
}

// Hash computes the revocation lookup key for a serialized credential:
// hex(SHA-256(serialized JWT)).
func Hash(serialized string) string {
	digest := sha256.Sum256([]byte(serialized))
	return hex.EncodeToString(digest[:])
}
