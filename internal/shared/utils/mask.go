package utils

import (
	"regexp"
	"strings"
)

// =====================================================
// PII MASKING
// =====================================================
// Applied to free-form strings (gateway error messages, raw responses)
// before they reach logs or processing_errors.

var (
	cardPattern    = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	ssnPattern     = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	routingPattern = regexp.MustCompile(`\b\d{9}\b`)
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?\d{1,3}[ -.]?\(?\d{3}\)?[ -.]?\d{3}[ -.]?\d{4}\b`)
)

// MaskPII replaces card numbers, SSNs, routing numbers, emails and phone
// numbers with redaction markers.
func MaskPII(s string) string {
	s = cardPattern.ReplaceAllString(s, "[CARD]")
	s = ssnPattern.ReplaceAllString(s, "[SSN]")
	s = emailPattern.ReplaceAllString(s, "[EMAIL]")
	s = phonePattern.ReplaceAllString(s, "[PHONE]")
	s = routingPattern.ReplaceAllString(s, "[ROUTING]")
	return s
}

// MaskAccountNumber keeps only the last 4 digits.
func MaskAccountNumber(accountNumber string) string {
	digits := strings.TrimSpace(accountNumber)
	if len(digits) <= 4 {
		return "****"
	}
	return "****" + digits[len(digits)-4:]
}

// Last4 returns the final four characters of an account number.
func Last4(accountNumber string) string {
	if len(accountNumber) < 4 {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-4:]
}
