package payments

// Customer-facing messages for gateway status details. Unknown details fall
// back to a generic message so raw gateway strings never leak to the kiosk.
var failureMessages = map[string]string{
	"cc_rejected_insufficient_amount":      "payment rejected: insufficient funds",
	"cc_rejected_bad_filled_card_number":   "payment rejected: check the card number",
	"cc_rejected_bad_filled_date":          "payment rejected: check the expiry date",
	"cc_rejected_bad_filled_security_code": "payment rejected: check the security code",
	"cc_rejected_call_for_authorize":       "payment rejected: card issuer requires authorization",
	"cc_rejected_card_disabled":            "payment rejected: card is disabled",
	"cc_rejected_duplicated_payment":       "payment rejected: duplicate payment",
	"cc_rejected_high_risk":                "payment rejected by the card issuer",
	"cc_rejected_max_attempts":             "payment rejected: too many attempts",
	"expired":                              "payment expired",
	"ABANDONED":                            "payment abandoned at the terminal",
	"CANCELED":                             "payment canceled at the terminal",
	"ERROR":                                "terminal error, please try again",
}

const genericFailureMessage = "payment was not completed"

// FailureMessage maps a gateway status detail onto a customer-facing string.
func FailureMessage(statusDetail string) string {
	if msg, ok := failureMessages[statusDetail]; ok {
		return msg
	}
	return genericFailureMessage
}
