package intent

import (
	"context"
	"testing"
)

func TestRuleClassifierVocabulary(t *testing.T) {
	tests := []struct {
		utterance string
		want      Intent
	}{
		{"I'll pay now", PayNow},
		{"yes I will pay today", PayNow},
		{"please send the link", PayNow},
		{"1", PayNow},
		{"call me later please", RequestCallback},
		{"can you call back tomorrow", RequestCallback},
		{"2", RequestCallback},
		{"I already paid this", Dispute},
		{"I won't pay, this is wrong", Dispute},
		{"this is not my loan", Dispute},
		{"how much do I owe", InfoRequest},
		{"3", InfoRequest},
		{"hello", Unclear},
		{"asdf qwerty", Unclear},
		{"", Unclear},
	}

	c := NewRuleClassifier()
	for _, tt := range tests {
		got, err := c.Classify(context.Background(), tt.utterance, Context{})
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tt.utterance, err)
		}
		if got.Intent != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.utterance, got.Intent, tt.want)
		}
	}
}

func TestRuleClassifierDisputeBeatsPayVocabulary(t *testing.T) {
	c := NewRuleClassifier()
	got, err := c.Classify(context.Background(), "I will not pay", Context{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Intent != Dispute {
		t.Fatalf("Classify() = %q, want %q", got.Intent, Dispute)
	}
}

func TestUnclearIsAmbiguous(t *testing.T) {
	c := NewRuleClassifier()
	got, err := c.Classify(context.Background(), "mumble", Context{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !got.Ambiguous() {
		t.Fatalf("unclear result should be ambiguous: %+v", got)
	}
}

func TestNewClassifierModes(t *testing.T) {
	if _, err := NewClassifier("rules", "", 0); err != nil {
		t.Fatalf("rules mode error = %v", err)
	}
	if _, err := NewClassifier("remote", "", 0); err == nil {
		t.Fatalf("remote mode without endpoint should fail")
	}
	c, err := NewClassifier("auto", "", 0)
	if err != nil {
		t.Fatalf("auto mode error = %v", err)
	}
	if _, ok := c.(*RuleClassifier); !ok {
		t.Fatalf("auto without endpoint should pick rules, got %T", c)
	}
}
