package risk

import "github.com/mfalcone/duecall/internal/directory"

// Tier buckets a priority score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Scorer derives a deterministic priority score in [0,100] for a customer's
// due obligation. The score is computed once at session creation and cached
// for the session's lifetime.
type Scorer struct {
	overdueWeight     float64
	promiseWeight     float64
	outstandingWeight float64
}

func NewScorer() *Scorer {
	return &Scorer{
		overdueWeight:     0.5,
		promiseWeight:     0.3,
		outstandingWeight: 0.2,
	}
}

// Score weighs overdue age, prior missed promises, and outstanding amount
// relative to the original loan. Each factor is normalized to [0,100].
func (s *Scorer) Score(customer directory.Customer, obligation directory.Obligation) int {
	overdue := float64(obligation.OverdueDays) / 90.0 * 100
	if overdue > 100 {
		overdue = 100
	}
	if overdue < 0 {
		overdue = 0
	}

	promises := float64(customer.MissedPromise) / 5.0 * 100
	if promises > 100 {
		promises = 100
	}

	outstanding := 0.0
	if obligation.LoanAmount > 0 {
		outstanding = obligation.Outstanding / obligation.LoanAmount * 100
		if outstanding > 100 {
			outstanding = 100
		}
		if outstanding < 0 {
			outstanding = 0
		}
	}

	score := s.overdueWeight*overdue + s.promiseWeight*promises + s.outstandingWeight*outstanding
	n := int(score + 0.5)
	if n > 100 {
		n = 100
	}
	if n < 0 {
		n = 0
	}
	return n
}

// TierOf maps a score to its band: <40 low, 40-70 medium, >70 high.
func TierOf(score int) Tier {
	switch {
	case score < 40:
		return TierLow
	case score <= 70:
		return TierMedium
	default:
		return TierHigh
	}
}
