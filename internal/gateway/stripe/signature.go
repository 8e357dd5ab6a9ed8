package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =====================================================
// STRIPE WEBHOOK SIGNATURE
// =====================================================
//
// Header format: t=<unix>,v1=<hex hmac>[,v1=<hex hmac>...]
// Signed payload: "<t>.<raw body>"
// HMAC-SHA256 over the signed payload with the endpoint secret.

// signatureTolerance bounds replay: events older than this are rejected
// even with a valid signature.
const signatureTolerance = 5 * time.Minute

// ComputeSignature returns the hex HMAC for a timestamp + body pair.
// Exposed for tests and the sandbox simulator.
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a Stripe-Signature header against the raw body.
func VerifySignature(payload []byte, header, secret string, now time.Time) bool {
	var timestamp int64
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return false
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	expected := ComputeSignature(timestamp, payload, secret)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}
