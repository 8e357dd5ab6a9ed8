package braintree

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// =====================================================
// BRAINTREE WEBHOOK SIGNATURE
// =====================================================
//
// Header format: <public_key>|<hex hmac>. The HMAC-SHA256 is computed
// over the raw body with the webhook secret.

// ComputeSignature returns the hex HMAC for a webhook body.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header against the raw body.
func VerifySignature(payload []byte, header, secret string) bool {
	parts := strings.SplitN(header, "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return false
	}
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(parts[1]))
}
