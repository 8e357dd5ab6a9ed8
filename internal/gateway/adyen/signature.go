package adyen

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// =====================================================
// ADYEN NOTIFICATION SIGNATURE
// =====================================================
//
// Adyen signs each notification item, not the HTTP body. The signed
// string is a colon-joined list of fields in a fixed order, and the
// signature is base64(HMAC-SHA256) with a hex-decoded key. It arrives
// in additionalData["hmacSignature"].

// signingPayload builds the colon-joined string Adyen signs.
// Field order is fixed by the Adyen notification spec.
func signingPayload(item *notificationItem) string {
	fields := []string{
		item.PspReference,
		item.OriginalReference,
		item.MerchantAccountCode,
		item.MerchantReference,
		strconv.FormatInt(item.Amount.Value, 10),
		item.Amount.Currency,
		item.EventCode,
		item.Success,
	}
	return strings.Join(fields, ":")
}

// ComputeItemSignature returns the base64 HMAC for one notification item.
func ComputeItemSignature(item *notificationItem, hexKey string) (string, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signingPayload(item)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// verifyItemSignature checks one item against its embedded signature.
func verifyItemSignature(item *notificationItem, hexKey string) bool {
	provided, ok := item.AdditionalData["hmacSignature"]
	if !ok || provided == "" {
		return false
	}
	expected, err := ComputeItemSignature(item, hexKey)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}
