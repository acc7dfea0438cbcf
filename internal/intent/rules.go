package intent

import (
	"context"
	"strings"
)

// RuleClassifier is the deterministic closed-vocabulary classifier. It is the
// default when no external NLU endpoint is configured and the reference
// implementation the remote classifier falls back to.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Phrase groups, checked in order. Dispute patterns run before payment ones
// so "I won't pay" never matches the "pay" agreement vocabulary.
var (
	disputePhrases = []string{
		"won't pay", "wont pay", "will not pay", "not paying", "refuse",
		"already paid", "dispute", "wrong", "incorrect", "not my loan",
		"complaint", "lawyer", "harass",
	}
	payPhrases = []string{
		"i'll pay", "ill pay", "i will pay", "pay now", "paying now",
		"ready to pay", "want to pay", "send the link", "send link",
		"make the payment", "yes, pay", "pay today",
	}
	callbackPhrases = []string{
		"call me later", "call back", "call me back", "callback",
		"later today", "call tomorrow", "not a good time", "busy right now",
		"reschedule",
	}
	infoPhrases = []string{
		"how much", "what is the amount", "balance", "due date",
		"more information", "what do i owe", "details",
	}
)

func (c *RuleClassifier) Classify(_ context.Context, utterance string, _ Context) (Result, error) {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Result{Intent: Unclear, Confidence: 0}, nil
	}

	// DTMF keypad shortcuts from the voice front-end arrive as bare digits.
	switch text {
	case "1":
		return Result{Intent: PayNow, Confidence: 1}, nil
	case "2":
		return Result{Intent: RequestCallback, Confidence: 1}, nil
	case "3":
		return Result{Intent: InfoRequest, Confidence: 1}, nil
	}

	if matchAny(text, disputePhrases) {
		return Result{Intent: Dispute, Confidence: 0.9}, nil
	}
	if matchAny(text, payPhrases) {
		return Result{Intent: PayNow, Confidence: 0.9}, nil
	}
	if matchAny(text, callbackPhrases) {
		return Result{Intent: RequestCallback, Confidence: 0.85}, nil
	}
	if matchAny(text, infoPhrases) {
		return Result{Intent: InfoRequest, Confidence: 0.8}, nil
	}

	return Result{Intent: Unclear, Confidence: 0.2}, nil
}

func matchAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
