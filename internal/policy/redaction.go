package policy

import "regexp"

// Collection-call transcripts routinely contain the customer's own contact
// and payment details. The journal stores transcripts for analytics, so
// high-risk patterns are masked before anything is persisted.
var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern    = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	accountPattern = regexp.MustCompile(`(?i)\b(?:acct|account)\s*(?:no\.?|number)?\s*[:#]?\s*\d{6,}\b`)
)

// RedactUtterance masks contact, card, and account details in a customer
// utterance before journaling. Returns whether anything was masked.
func RedactUtterance(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = accountPattern.ReplaceAllString(out, "[REDACTED_ACCOUNT]")
	changed = changed || next != out
	out = next

	// Card redaction runs before phone so card numbers are not classified
	// as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
