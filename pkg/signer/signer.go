package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign computes an HMAC-SHA256 tag over message keyed with secret.
// The tag is base64 raw-URL encoded so it can travel inside query
// strings and token fields unescaped.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Equal compares two tags in constant time.
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
