package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageCustomerTurn(t *testing.T) {
	raw := []byte(`{"type":"customer_turn","customer_id":"c1","utterance":"hello"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	turn, ok := msg.(CustomerTurn)
	if !ok {
		t.Fatalf("ParseClientMessage() = %T, want CustomerTurn", msg)
	}
	if turn.CustomerID != "c1" || turn.Utterance != "hello" {
		t.Fatalf("CustomerTurn = %+v", turn)
	}
}

func TestParseClientMessageRejectsMissingCustomer(t *testing.T) {
	raw := []byte(`{"type":"customer_turn","utterance":"hello"}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	raw := []byte(`{"type":"audio_chunk"}`)
	if _, err := ParseClientMessage(raw); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageBadJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}
