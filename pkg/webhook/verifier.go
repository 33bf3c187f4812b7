// Package webhook verifies and dispatches platform webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrSignatureMismatch is returned when a delivery fails verification.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// Sign returns the base64 HMAC-SHA256 of body under secret.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether claimedSignature is exactly the base64 signature of
// the raw body bytes. The header string is compared as sent, so alternate
// encodings of the same digest never verify. An empty signature, secret or
// body never verifies.
func Verify(rawBody []byte, claimedSignature string, secret []byte) bool {
	if len(rawBody) == 0 || claimedSignature == "" || len(secret) == 0 {
		return false
	}

	expected := Sign(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(claimedSignature))
}
