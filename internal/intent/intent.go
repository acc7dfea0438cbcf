package intent

import "context"

// Intent is the classified purpose of a customer utterance.
type Intent string

const (
	PayNow          Intent = "pay_now"
	RequestCallback Intent = "request_callback"
	Dispute         Intent = "dispute"
	InfoRequest     Intent = "info_request"
	Unclear         Intent = "unclear"
)

// AmbiguityThreshold is the confidence below which a classification is
// treated as ambiguous and routed back to a re-prompt.
const AmbiguityThreshold = 0.5

// Result is a single classification outcome.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Ambiguous reports whether the result should be handled as unclear.
func (r Result) Ambiguous() bool {
	return r.Intent == Unclear || r.Confidence < AmbiguityThreshold
}

// Context carries the limited prior-conversation state a classifier may see.
// Classifiers must never mutate session state; they only read this snapshot.
type Context struct {
	LastIntent Intent
	TurnCount  int
	Language   string
}

// Classifier maps an utterance plus limited prior context to an intent.
type Classifier interface {
	Classify(ctx context.Context, utterance string, conv Context) (Result, error)
}
