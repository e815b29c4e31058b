package domain

import "strings"

// Gateway error codes that identify a definitive business decline. Matching
// is by substring because the gateway embeds codes in composite strings.
var businessFailureCodes = []string{
	"LIMIT_EXCEEDED",
	"INVALID_CARD",
	"CARD_ERROR",
	"INSUFFICIENT_FUNDS",
	"PAYMENT_FAILED",
}

// IsBusinessFailure classifies a gateway error code. Empty codes, breaker
// trips on the gateway side, and unknown codes all classify as external:
// the decline is not definitive and reconciliation must decide.
func IsBusinessFailure(code string) bool {
	if code == "" {
		return false
	}
	if strings.Contains(code, "CIRCUIT_BREAKER_OPEN") {
		return false
	}
	for _, known := range businessFailureCodes {
		if strings.Contains(code, known) {
			return true
		}
	}
	return false
}
