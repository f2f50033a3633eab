package session

import (
	"crypto/rand"
	"encoding/base64"
)

// newRefreshSecret returns a fresh opaque refresh secret: nBytes of CSPRNG
// output, URL-safe base64 without padding.
func newRefreshSecret(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
