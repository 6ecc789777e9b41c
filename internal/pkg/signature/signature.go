// Package signature verifies inbound webhook authenticity.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verify checks an HMAC-SHA256 hex signature over the raw request body.
//
// An empty secret disables verification and returns true. This is a
// development-mode bypass: running without a webhook secret in production
// leaves the endpoint open to forged events.
func Verify(rawBody []byte, sig, secret string) bool {
	if secret == "" {
		return true
	}
	if sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}

// Sign computes the hex HMAC-SHA256 signature for a body. Used by tests and
// by tooling that replays captured webhooks.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
