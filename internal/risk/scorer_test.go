package risk

import (
	"testing"

	"github.com/mfalcone/duecall/internal/directory"
)

func TestScoreDeterministicAndBounded(t *testing.T) {
	s := NewScorer()
	cust := directory.Customer{ID: "c1", MissedPromise: 2}
	obl := directory.Obligation{OverdueDays: 30, LoanAmount: 1000, Outstanding: 400}

	first := s.Score(cust, obl)
	second := s.Score(cust, obl)
	if first != second {
		t.Fatalf("Score() not deterministic: %d vs %d", first, second)
	}
	if first < 0 || first > 100 {
		t.Fatalf("Score() = %d, want within [0,100]", first)
	}
}

func TestScoreExtremes(t *testing.T) {
	s := NewScorer()

	clean := s.Score(directory.Customer{}, directory.Obligation{})
	if clean != 0 {
		t.Fatalf("Score(clean) = %d, want 0", clean)
	}

	worst := s.Score(
		directory.Customer{MissedPromise: 10},
		directory.Obligation{OverdueDays: 365, LoanAmount: 1000, Outstanding: 1000},
	)
	if worst != 100 {
		t.Fatalf("Score(worst) = %d, want 100", worst)
	}
}

func TestScoreMonotonicInOverdueDays(t *testing.T) {
	s := NewScorer()
	cust := directory.Customer{}
	young := s.Score(cust, directory.Obligation{OverdueDays: 5, LoanAmount: 100, Outstanding: 50})
	old := s.Score(cust, directory.Obligation{OverdueDays: 60, LoanAmount: 100, Outstanding: 50})
	if old <= young {
		t.Fatalf("older overdue should score higher: young=%d old=%d", young, old)
	}
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{0, TierLow},
		{39, TierLow},
		{40, TierMedium},
		{70, TierMedium},
		{71, TierHigh},
		{100, TierHigh},
	}
	for _, tt := range tests {
		if got := TierOf(tt.score); got != tt.want {
			t.Errorf("TierOf(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
