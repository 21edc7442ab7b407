package internal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

// HashOrigin derives the stable, non-reversible identifier for a requesting
// network origin: HMAC-SHA256 keyed with a server-side pepper, base64
// encoded. Equal inputs always map to equal outputs so attempts from the same
// origin correlate, but without the pepper the stored value cannot be
// reversed to an address.
func HashOrigin(pepper, rawOrigin string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(rawOrigin))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NewNonceToken returns a fresh cryptographically random challenge token.
func NewNonceToken() string {
	return uuid.NewString()
}
